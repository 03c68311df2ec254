package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/tool"

	"github.com/dyike/BriefCast/internal/agents"
	"github.com/dyike/BriefCast/internal/metrics"
	"github.com/dyike/BriefCast/internal/script"
	"github.com/dyike/BriefCast/internal/utils"
)

// work renders prompt with vars and runs one worker for profile.
func (r *run) work(ctx context.Context, name, profile string, tools []tool.InvokableTool, prompt string, vars map[string]any) (*agents.Result, error) {
	m, err := r.o.models.Model(ctx, profile)
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", name, err)
	}
	w, err := agents.NewWorker(ctx, name, m, tools, agents.WithMaxIterations(r.o.cfg.WorkerMaxIterations))
	if err != nil {
		return nil, err
	}
	msgs, err := utils.RenderPrompt(ctx, prompt, vars)
	if err != nil {
		return nil, err
	}
	res, err := w.Run(ctx, msgs)
	if err != nil {
		return nil, err
	}
	log.Printf("[Pipeline] %s done: iterations=%d tool_calls=%d parsed=%v", name, res.Iterations, res.ToolCalls, res.Parsed())
	return res, nil
}

// normalize validates raw turns and counts the ones dropped.
func normalize(name string, raw []script.RawTurn) []script.Turn {
	turns := script.Normalize(raw)
	if dropped := len(raw) - len(turns); dropped > 0 {
		metrics.TurnsDropped.Add(float64(dropped))
		log.Printf("[Pipeline] %s: %d of %d turns dropped", name, dropped, len(raw))
	}
	return turns
}

// jsonText renders v for a prompt. Encoding errors render as null.
func jsonText(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "null"
	}
	return string(data)
}

// refineStrict asks a refiner for edits and retries while the answer is
// unparsable or any edit is invalid. A call error stops retrying. No
// edits come back when every attempt fails.
func (r *run) refineStrict(ctx context.Context, name, profile, prompt string, vars map[string]any, n, retries int) []script.Edit {
	for attempt := 0; attempt <= retries; attempt++ {
		res, err := r.work(ctx, name, profile, nil, prompt, vars)
		if err != nil {
			log.Printf("[Pipeline] %s call failed, keeping unrefined script: %v", name, err)
			return nil
		}
		if !res.Parsed() {
			log.Printf("[Pipeline] %s attempt %d unparsable", name, attempt+1)
			continue
		}
		edits, err := script.ParseEdits(res.Data, n)
		if err != nil {
			log.Printf("[Pipeline] %s attempt %d rejected: %v", name, attempt+1, err)
			continue
		}
		return edits
	}
	log.Printf("[Pipeline] %s gave no usable edits after %d attempts, keeping unrefined script", name, retries+1)
	return nil
}

// refineLenient makes one refiner call and keeps whichever edits are
// valid.
func (r *run) refineLenient(ctx context.Context, name, profile, prompt string, vars map[string]any, n int) []script.Edit {
	res, err := r.work(ctx, name, profile, nil, prompt, vars)
	if err != nil {
		log.Printf("[Pipeline] %s call failed, keeping unrefined script: %v", name, err)
		return nil
	}
	if !res.Parsed() {
		log.Printf("[Pipeline] %s unparsable, keeping unrefined script", name)
		return nil
	}
	return script.ParseEditsLenient(res.Data, n)
}

// refinerVars is the shared refiner prompt input over the merged script.
func refinerVars(date string, merged []script.Turn, sections []script.Section) map[string]any {
	return map[string]any{
		"date_kr":     script.KoreanDate(date),
		"sections":    jsonText(sections),
		"transitions": jsonText(script.Transitions(sections)),
		"scripts":     jsonText(script.Payloads(merged)),
	}
}
