package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"

	"github.com/dyike/BriefCast/internal/dataflows"
	"github.com/dyike/BriefCast/internal/script"
)

// PromptForDate asks for the briefing date, defaulting to today.
func PromptForDate() (string, error) {
	var dateStr string
	prompt := &survey.Input{
		Message: "Briefing date (YYYYMMDD or YYYY-MM-DD):",
		Help:    "The US trading day the briefing covers.",
		Default: time.Now().Format("20060102"),
	}
	err := survey.AskOne(prompt, &dateStr, survey.WithValidator(func(val interface{}) error {
		_, err := script.NormalizeDate(val.(string))
		return err
	}))
	if err != nil {
		return "", err
	}
	return script.NormalizeDate(dateStr)
}

// PromptForTickers asks for a comma separated ticker list. Empty input
// means no ticker segment.
func PromptForTickers() ([]string, error) {
	var raw string
	prompt := &survey.Input{
		Message: "Tickers to debate (comma separated, empty for none):",
	}
	err := survey.AskOne(prompt, &raw, survey.WithValidator(func(val interface{}) error {
		_, err := parseTickers(val.(string))
		return err
	}))
	if err != nil {
		return nil, err
	}
	return parseTickers(raw)
}

func PromptForConfirmation(message string) (bool, error) {
	var confirmed bool
	prompt := &survey.Confirm{
		Message: message,
		Default: true,
	}
	err := survey.AskOne(prompt, &confirmed)
	return confirmed, err
}

// parseTickers splits, normalizes and de-duplicates a ticker list.
func parseTickers(raw string) ([]string, error) {
	out := []string{}
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		sym := dataflows.NormalizeSymbol(part)
		if sym == "" || seen[sym] {
			continue
		}
		if err := dataflows.ValidateSymbol(sym); err != nil {
			return nil, fmt.Errorf("ticker %q: %w", part, err)
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out, nil
}
