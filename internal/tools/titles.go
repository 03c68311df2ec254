package tools

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/dyike/BriefCast/internal/models"
)

//go:embed stopwords.txt
var defaultStopwords string

var titleToken = regexp.MustCompile(`[a-z0-9$%+\-']+`)

func parseStopwords(text string) map[string]bool {
	words := map[string]bool{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words[strings.ToLower(line)] = true
	}
	return words
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// TopTitleWords ranks words of titles.txt by frequency, skipping
// stopwords, single characters and pure numbers. Ties keep first
// appearance order. A missing titles file yields no words.
func (g *Gateway) TopTitleWords(limit int) ([]models.WordCount, error) {
	data, err := os.ReadFile(g.path("titles.txt"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read titles.txt: %w", err)
	}
	return topWords(string(data), parseStopwords(defaultStopwords), limit), nil
}

func topWords(text string, stop map[string]bool, limit int) []models.WordCount {
	counts := map[string]int{}
	var order []string
	for _, tok := range titleToken.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 2 || isDigits(tok) || stop[tok] {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}
	out := make([]models.WordCount, 0, len(order))
	for _, w := range order {
		out = append(out, models.WordCount{Word: w, Count: counts[w]})
	}
	return out
}
