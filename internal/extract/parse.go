package extract

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/j-veylop/orbwatch/internal/config"
)

// maxSaneBalance bounds accepted readings. Anything above this is far
// more likely a timestamp, an ID, or a price in minor units than a
// credit balance.
const maxSaneBalance = 1_000_000

var numberRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// Parser applies the shared extraction heuristics to page content.
// The same heuristics back the browser and plain-HTTP strategies.
type Parser struct {
	patterns *config.Patterns
}

// NewParser creates a parser over the given pattern table.
func NewParser(patterns *config.Patterns) *Parser {
	if patterns == nil {
		patterns = config.DefaultPatterns()
	}
	return &Parser{patterns: patterns}
}

// ExtractBalance scans page content for a credit balance. Heuristics
// run in priority order; the first sane candidate wins.
func (p *Parser) ExtractBalance(html string) (uint, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// Unparseable markup still gets the text and attribute passes
		if n, ok := p.fromRegexTable(html); ok {
			return n, true
		}
		return p.fromAttributes(html)
	}

	if n, ok := p.fromFrameworkData(doc); ok {
		return n, true
	}
	if n, ok := p.fromLabels(doc.Text()); ok {
		return n, true
	}
	if n, ok := p.fromRegexTable(doc.Text()); ok {
		return n, true
	}
	if n, ok := p.fromScripts(doc); ok {
		return n, true
	}
	return p.fromAttributes(html)
}

// fromFrameworkData digs through embedded SPA state blobs
// (__NEXT_DATA__ and friends) for balance-looking keys.
func (p *Parser) fromFrameworkData(doc *goquery.Document) (uint, bool) {
	var result uint
	found := false

	doc.Find(`script#__NEXT_DATA__, script[type="application/json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if v, ok := searchBalanceKey(data); ok {
			if n, sane := saneAmount(v); sane {
				result = n
				found = true
				return false
			}
		}
		return true
	})

	return result, found
}

// searchBalanceKey walks a decoded JSON value looking for keys that
// name a balance, credit, or amount. Maps are walked in sorted key
// order so results are deterministic.
func searchBalanceKey(v any) (float64, bool) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			lower := strings.ToLower(k)
			if strings.Contains(lower, "balance") || strings.Contains(lower, "credit") || strings.Contains(lower, "amount") {
				if f, ok := numericValue(val[k]); ok {
					return f, true
				}
			}
		}
		for _, k := range keys {
			if f, ok := searchBalanceKey(val[k]); ok {
				return f, true
			}
		}
	case []any:
		for _, item := range val {
			if f, ok := searchBalanceKey(item); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func numericValue(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case string:
		cleaned := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// fromLabels finds a known label phrase in the visible text and takes
// the nearest number around it. Portals put the number on either side
// ("Credit balance: 2,666" vs "2,666 User Messages").
func (p *Parser) fromLabels(text string) (uint, bool) {
	lower := strings.ToLower(text)

	for _, label := range p.patterns.Labels {
		idx := strings.Index(lower, strings.ToLower(label))
		if idx < 0 {
			continue
		}

		start := idx - 48
		if start < 0 {
			start = 0
		}
		end := idx + len(label) + 48
		if end > len(text) {
			end = len(text)
		}

		for _, candidate := range numberRe.FindAllString(text[start:end], -1) {
			if n, ok := parseAmount(candidate); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// fromRegexTable runs the prioritized pattern table over visible text.
// Service-specific patterns are tried before generic fallbacks.
func (p *Parser) fromRegexTable(text string) (uint, bool) {
	for _, group := range [][]*regexp.Regexp{p.patterns.Balance, p.patterns.Generic} {
		for _, re := range group {
			for _, match := range re.FindAllStringSubmatch(text, -1) {
				if len(match) < 2 {
					continue
				}
				if n, ok := parseAmount(match[1]); ok {
					return n, true
				}
			}
		}
	}
	return 0, false
}

// fromScripts scans inline script bodies for balance assignments.
func (p *Parser) fromScripts(doc *goquery.Document) (uint, bool) {
	var result uint
	found := false

	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		body := s.Text()
		for _, re := range p.patterns.Script {
			for _, match := range re.FindAllStringSubmatch(body, -1) {
				if len(match) < 2 {
					continue
				}
				if n, ok := parseAmount(match[1]); ok {
					result = n
					found = true
					return false
				}
			}
		}
		return true
	})

	return result, found
}

// fromAttributes scans the raw markup for data attributes carrying the
// balance. This is the last resort and works without a DOM.
func (p *Parser) fromAttributes(html string) (uint, bool) {
	for _, re := range p.patterns.Attribute {
		for _, match := range re.FindAllStringSubmatch(html, -1) {
			if len(match) < 2 {
				continue
			}
			if n, ok := parseAmount(match[1]); ok {
				return n, true
			}
		}
	}
	return 0, false
}

// parseAmount converts a captured string like "2,666" or "2666.00"
// into a sane balance.
func parseAmount(s string) (uint, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return saneAmount(f)
}

// firstAmount extracts the first sane number from free-form text.
func firstAmount(text string) (uint, bool) {
	for _, candidate := range numberRe.FindAllString(text, -1) {
		if n, ok := parseAmount(candidate); ok {
			return n, true
		}
	}
	return 0, false
}

func saneAmount(f float64) (uint, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f < 0 || f > maxSaneBalance {
		return 0, false
	}
	return uint(f), true
}
