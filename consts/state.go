package consts

// Chapter names stored on the persisted artifact.
const (
	Chapter_Opening = "opening"
	Chapter_Theme   = "theme"
	Chapter_Ticker  = "ticker"
	Chapter_Closing = "closing"
)

// LLM profile prefixes resolved by config.LLMProfile.
const (
	Profile_Opening             = "OPENING"
	Profile_ThemeWorker         = "THEME_WORKER"
	Profile_ThemeRefiner        = "THEME_REFINER"
	Profile_DebateFundamental   = "DEBATE_FUNDAMENTAL"
	Profile_DebateRisk          = "DEBATE_RISK"
	Profile_DebateGrowth        = "DEBATE_GROWTH"
	Profile_DebateSentiment     = "DEBATE_SENTIMENT"
	Profile_DebateModerator     = "DEBATE_MODERATOR"
	Profile_TickerScriptWorker  = "TICKER_SCRIPT_WORKER"
	Profile_TickerScriptRefiner = "TICKER_SCRIPT_REFINER"
	Profile_Closing             = "CLOSING"
)

const (
	State_Pending = "pending"
	State_Running = "running"
	State_Done    = "done"
	State_Failed  = "failed"
)
