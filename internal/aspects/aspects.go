// Package aspects tags reviews with the product areas they mention using a
// fixed keyword lexicon. Tagging is deterministic so that theme labelling
// fallbacks are stable across runs.
package aspects

import (
	"cmp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/evidence"
)

// MaxQuoteLen is the maximum quote length in characters.
const MaxQuoteLen = 180

// lexicon maps each aspect to token prefixes that signal it.
var lexicon = map[domain.Aspect][]string{
	domain.AspectPricing:      {"pric", "expensive", "cost", "billing", "bill", "invoice", "subscription", "tier", "plan", "refund", "charg", "fee"},
	domain.AspectOnboarding:   {"onboard", "setup", "signup", "tutorial", "getting", "learning", "invite", "trial"},
	domain.AspectSupport:      {"support", "ticket", "agent", "helpdesk", "respons", "customer", "service", "chat"},
	domain.AspectPerformance:  {"slow", "lag", "speed", "fast", "load", "latency", "performance", "freez", "sluggish"},
	domain.AspectIntegrations: {"integrat", "api", "webhook", "slack", "salesforce", "zapier", "sync", "plugin", "connector", "import", "export"},
	domain.AspectReporting:    {"report", "dashboard", "analytic", "chart", "metric", "insight"},
	domain.AspectUsability:    {"confus", "intuitive", "ui", "ux", "interface", "navigat", "clunky", "easy", "usab", "design"},
	domain.AspectReliability:  {"crash", "bug", "outage", "down", "error", "broken", "fail", "unstable", "reliab", "lost"},
	domain.AspectFeatureGap:   {"missing", "lack", "wish", "feature", "request", "roadmap", "need"},
}

// negative cues raise an untagged review's severity to medium.
var negativeCues = []string{"not", "never", "terrible", "awful", "worst", "hate", "bad", "poor", "disappoint", "frustrat", "useless"}

// Tagger extracts aspect tags from review text.
type Tagger struct {
	lexicon map[domain.Aspect][]string
}

// NewTagger returns a tagger using the built-in lexicon.
func NewTagger() *Tagger {
	return &Tagger{lexicon: lexicon}
}

// Tag returns one tag per aspect mentioned in the review, in aspect
// declaration order.
func (t *Tagger) Tag(r domain.Review) []domain.AspectTag {
	sentences := splitSentences(r.Body)
	severity := r.Severity
	if !severity.IsValid() {
		severity = inferSeverity(r.Body)
	}

	var tags []domain.AspectTag
	for _, aspect := range domain.AllAspects() {
		quote, ok := t.match(aspect, sentences)
		if !ok {
			continue
		}
		tags = append(tags, domain.AspectTag{
			ReviewID: r.ID,
			Aspect:   aspect,
			Severity: severity,
			Quote:    Truncate(quote, MaxQuoteLen),
		})
	}
	return tags
}

// TagAll tags every review and concatenates the results.
func (t *Tagger) TagAll(reviews []domain.Review) []domain.AspectTag {
	var out []domain.AspectTag
	for _, r := range reviews {
		out = append(out, t.Tag(r)...)
	}
	return out
}

func (t *Tagger) match(aspect domain.Aspect, sentences []string) (string, bool) {
	for _, s := range sentences {
		for _, tok := range evidence.Tokenize(s) {
			if hasAnyPrefix(tok, t.lexicon[aspect]) {
				return s, true
			}
		}
	}
	return "", false
}

// AspectCount is an aspect with the number of tags naming it.
type AspectCount struct {
	Aspect domain.Aspect `json:"aspect"`
	Count  int           `json:"count"`
}

// Top returns the n most frequent aspects. Ties keep declaration order.
func Top(tags []domain.AspectTag, n int) []AspectCount {
	counts := make(map[domain.Aspect]int)
	for _, tag := range tags {
		counts[tag.Aspect]++
	}

	order := make(map[domain.Aspect]int)
	for i, a := range domain.AllAspects() {
		order[a] = i
	}

	out := make([]AspectCount, 0, len(counts))
	for a, c := range counts {
		out = append(out, AspectCount{Aspect: a, Count: c})
	}
	slices.SortFunc(out, func(a, b AspectCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(order[a.Aspect], order[b.Aspect]); c != 0 {
			return c
		}
		return cmp.Compare(a.Aspect, b.Aspect)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Truncate shortens s to at most n characters.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func inferSeverity(body string) domain.Severity {
	for _, tok := range strings.Fields(strings.ToLower(body)) {
		if hasAnyPrefix(strings.Trim(tok, ".,!?;:'\""), negativeCues) {
			return domain.SeverityMedium
		}
	}
	return domain.SeverityLow
}

func splitSentences(body string) []string {
	parts := strings.FieldsFunc(body, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyPrefix(tok string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(p) <= 3 {
			if tok == p {
				return true
			}
			continue
		}
		if strings.HasPrefix(tok, p) {
			return true
		}
	}
	return false
}
