package consts

const (
	// 파이프라인 스테이지 노드
	OpeningStage        = "opening"
	ThemeStage          = "theme"
	TickerPipelineStage = "ticker_pipeline"
	ClosingStage        = "closing"

	// 스테이지 내부 워커
	ThemeWorker         = "theme_worker"
	ThemeRefiner        = "theme_refiner"
	TickerScriptWorker  = "ticker_script_worker"
	TickerScriptRefiner = "ticker_script_refiner"
	DebateModerator     = "debate_moderator"

	// 토론 전문가
	FundamentalExpert = "fundamental"
	RiskExpert        = "risk"
	GrowthExpert      = "growth"
	SentimentExpert   = "sentiment"
)
