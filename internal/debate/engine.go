package debate

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dyike/BriefCast/consts"
	"github.com/dyike/BriefCast/internal/agents"
	"github.com/dyike/BriefCast/internal/fanout"
	"github.com/dyike/BriefCast/internal/llm"
	"github.com/dyike/BriefCast/internal/metrics"
	"github.com/dyike/BriefCast/internal/script"
	"github.com/dyike/BriefCast/internal/tools"
	"github.com/dyike/BriefCast/internal/utils"
)

const opponentTextLimit = 800

// fallbackGuidance is used for every role when the moderator gave none.
const fallbackGuidance = "다른 전문가의 논거 중 가장 약한 부분을 하나 짚고, 새로운 근거로 당신의 판단을 보강하거나 수정하세요."

// Engine runs ticker debates for one briefing date.
type Engine struct {
	gw            *tools.Gateway
	models        llm.ModelSource
	settings      Settings
	maxIterations int
}

type Option func(*Engine)

func WithMaxIterations(n int) Option {
	return func(e *Engine) { e.maxIterations = n }
}

func NewEngine(gw *tools.Gateway, models llm.ModelSource, settings Settings, opts ...Option) *Engine {
	e := &Engine{
		gw:            gw,
		models:        models,
		settings:      settings.normalized(),
		maxIterations: agents.DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Settings() Settings { return e.settings }

// Run debates one ticker until the next-step rule ends it. Expert
// failures degrade to a neutral utterance; a moderator failure fails
// the debate.
func (e *Engine) Run(ctx context.Context, ticker string) (*Transcript, error) {
	begin := time.Now()
	dctx := CollectContext(ctx, e.gw, ticker)
	t := &Transcript{Ticker: dctx.Ticker, Date: dctx.Date, Rounds: []Round{}, Context: dctx}

	var guidance map[Role]string
	for n := 1; ; n++ {
		round := e.RunRound(ctx, dctx, n, t.Rounds, guidance)
		t.Rounds = append(t.Rounds, round)
		consensus := MeetsConsensus(&round, e.settings.Threshold)
		step := e.settings.NextStep(n, consensus)
		log.Printf("[Debate] %s round %d: %s consensus=%v next=%s", dctx.Ticker, n, round.Positions(), consensus, step)

		verdict, err := e.Review(ctx, t, consensus, step)
		if err != nil {
			return nil, fmt.Errorf("debate %s round %d: moderator: %w", dctx.Ticker, n, err)
		}
		if step == End {
			t.Consensus = consensus
			t.Conclusion = Conclude(&round, consensus, verdict)
			break
		}
		guidance = verdict.Guidance
	}

	metrics.DebateRounds.Observe(float64(len(t.Rounds)))
	metrics.DebateOutcomes.WithLabelValues(string(t.Conclusion.Action), strconv.FormatBool(t.Consensus)).Inc()
	log.Printf("[Debate] %s concluded %s (%.2f) after %d rounds in %s", t.Ticker, t.Conclusion.Action, t.Conclusion.Confidence, len(t.Rounds), time.Since(begin).Round(time.Millisecond))
	return t, nil
}

// RunRound asks the four experts in parallel. A failed expert yields a
// neutral HOLD citing the first allowed source.
func (e *Engine) RunRound(ctx context.Context, dctx *Context, n int, prev []Round, guidance map[Role]string) Round {
	allowed := dctx.Allowed()
	outcomes := fanout.RunOutcomes(ctx, Roles, func(ctx context.Context, _ int, role Role) (Utterance, error) {
		return e.ask(ctx, dctx, allowed, role, n, prev, guidance[role])
	}, fanout.WithGroup("debate_experts"), fanout.WithConcurrency(len(Roles)))

	round := Round{Round: n}
	for i, role := range Roles {
		u := outcomes[i].Value
		if err := outcomes[i].Err; err != nil {
			log.Printf("[Debate] %s round %d %s failed: %v", dctx.Ticker, n, role, err)
			u = Utterance{Action: Hold, Confidence: defaultConfidence, Sources: allowed.First()}
		}
		round.set(role, u)
	}
	return round
}

func (e *Engine) ask(ctx context.Context, dctx *Context, allowed *script.AllowedSet, role Role, n int, prev []Round, guidance string) (Utterance, error) {
	m, err := e.models.Model(ctx, roleProfiles[role])
	if err != nil {
		return Utterance{}, err
	}
	w, err := agents.NewWorker(ctx, "debate_"+string(role), m, e.gw.ExpertTools(), agents.WithMaxIterations(e.maxIterations))
	if err != nil {
		return Utterance{}, err
	}
	if guidance == "" {
		guidance = "(none)"
	}
	msgs, err := utils.RenderPrompt(ctx, "debate_expert", map[string]any{
		"role":            string(role),
		"ticker":          dctx.Ticker,
		"iso_date":        script.ISODate(dctx.Date),
		"role_desc":       roleDescriptions[role],
		"round":           n,
		"context":         dctx.Render(),
		"allowed_sources": dctx.AllowedJSON(),
		"opponents":       opponents(prev, role),
		"guidance":        guidance,
	})
	if err != nil {
		return Utterance{}, err
	}
	res, err := w.Run(ctx, msgs)
	if err != nil {
		return Utterance{}, err
	}
	if !res.Parsed() {
		return Utterance{}, fmt.Errorf("%s: answer has no JSON object", role)
	}
	text, _ := res.Data["text"].(string)
	return Utterance{
		Text:       strings.TrimSpace(text),
		Action:     NormalizeAction(res.Data["action"]),
		Confidence: NormalizeConfidence(res.Data["confidence"]),
		Sources:    allowed.FilterOrFirst(script.ParseSources(res.Data["sources"])),
	}, nil
}

// opponents digests the other roles' previous-round arguments.
func opponents(prev []Round, self Role) string {
	if len(prev) == 0 {
		return "(first round)"
	}
	last := prev[len(prev)-1]
	var parts []string
	for _, role := range Roles {
		if role == self {
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", role, truncateRunes(last.Get(role).Text, opponentTextLimit)))
	}
	return strings.Join(parts, "\n\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// Review shows the moderator every round so far. On continue the
// verdict carries guidance for each role; on end it carries whatever
// conclusion fields the moderator filled.
func (e *Engine) Review(ctx context.Context, t *Transcript, consensus bool, step Step) (*Verdict, error) {
	m, err := e.models.Model(ctx, consts.Profile_DebateModerator)
	if err != nil {
		return nil, err
	}
	w, err := agents.NewWorker(ctx, consts.DebateModerator, m, nil, agents.WithMaxIterations(e.maxIterations))
	if err != nil {
		return nil, err
	}
	msgs, err := utils.RenderPrompt(ctx, "debate_moderator", map[string]any{
		"ticker":    t.Ticker,
		"iso_date":  script.ISODate(t.Date),
		"round":     len(t.Rounds),
		"consensus": consensus,
		"next_step": string(step),
		"rounds":    renderRounds(t.Rounds),
	})
	if err != nil {
		return nil, err
	}
	res, err := w.Run(ctx, msgs)
	if err != nil {
		return nil, err
	}

	v := &Verdict{Guidance: map[Role]string{}}
	if res.Parsed() {
		if g, ok := res.Data["guidance"].(map[string]any); ok {
			for _, role := range Roles {
				if s, ok := g[string(role)].(string); ok {
					v.Guidance[role] = strings.TrimSpace(s)
				}
			}
		}
		if c, ok := res.Data["conclusion"].(map[string]any); ok {
			if s, ok := c["text"].(string); ok {
				v.Text = strings.TrimSpace(s)
			}
			if raw, ok := c["action"]; ok && raw != nil {
				a := NormalizeAction(raw)
				v.Action = &a
			}
			if raw, ok := c["confidence"]; ok && raw != nil {
				f := NormalizeConfidence(raw)
				v.Confidence = &f
			}
		}
	} else {
		log.Printf("[Debate] %s moderator answer unparsable, using defaults", t.Ticker)
	}

	if step == Continue && noGuidance(v.Guidance) {
		for _, role := range Roles {
			v.Guidance[role] = fallbackGuidance
		}
	}
	return v, nil
}

func noGuidance(g map[Role]string) bool {
	for _, s := range g {
		if s != "" {
			return false
		}
	}
	return true
}

func renderRounds(rounds []Round) string {
	var b strings.Builder
	for i, r := range rounds {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Round %d\n", r.Round)
		for _, role := range Roles {
			u := r.Get(role)
			fmt.Fprintf(&b, "- %s: %s (%.2f) %s\n", role, u.Action, u.Confidence, u.Text)
		}
	}
	return b.String()
}
