// Package evidence ranks cluster members by TF-IDF x severity x recency
// and picks a small deterministic evidence set per cluster.
//
// Document frequency is computed over the cluster's own members only.
// Equal scores are ordered by review date, then ID, both ascending.
package evidence

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

const (
	// scoreScale rounds scores to 12 decimal places before comparison.
	scoreScale = 1e12

	// recencyFloor is the weight of the oldest and of undated reviews.
	recencyFloor = 0.1

	// DefaultK is the default evidence count per cluster.
	DefaultK = 5

	// DefaultPeriodDays is the default recency horizon.
	DefaultPeriodDays = 90
)

// Candidate is a cluster member eligible as evidence.
type Candidate struct {
	ID         string
	Body       string
	ReviewDate string
	Severity   domain.Severity
}

// FromReview builds a candidate from a review.
func FromReview(r domain.Review) Candidate {
	return Candidate{ID: r.ID, Body: r.Body, ReviewDate: r.ReviewDate, Severity: r.Severity}
}

// Selector picks evidence.
type Selector struct {
	k          int
	periodDays int
}

// NewSelector creates a selector keeping k reviews with a recency horizon of
// periodDays. Non-positive values fall back to defaults.
func NewSelector(k, periodDays int) *Selector {
	if k <= 0 {
		k = DefaultK
	}
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	return &Selector{k: k, periodDays: periodDays}
}

// K returns the number of reviews kept.
func (s *Selector) K() int {
	return s.k
}

// Select returns the top-k members. The period end is the latest parseable
// member date.
func (s *Selector) Select(members []Candidate) []Candidate {
	return s.SelectAt(members, PeriodEnd(members))
}

// SelectAt returns the top-k members with recency measured from end.
func (s *Selector) SelectAt(members []Candidate, end time.Time) []Candidate {
	if len(members) == 0 {
		return nil
	}
	scores := s.Score(members, end)
	ranked := rank(members, scores)
	return ranked[:min(s.k, len(ranked))]
}

// Explain returns the score breakdown of the selected members, in rank order.
func (s *Selector) Explain(members []Candidate) []domain.EvidenceScore {
	end := PeriodEnd(members)
	scores := s.Score(members, end)
	picked := s.SelectAt(members, end)

	out := make([]domain.EvidenceScore, len(picked))
	for i, c := range picked {
		out[i] = scores[c.ID]
	}
	return out
}

// Score computes the score breakdown for every member, keyed by ID.
func (s *Selector) Score(members []Candidate, end time.Time) map[string]domain.EvidenceScore {
	tfidf := tfidfSums(members)
	out := make(map[string]domain.EvidenceScore, len(members))
	for _, m := range members {
		sev := m.Severity.OrDefault()
		sevW := float64(sev.Rank())
		recW := s.recency(m.ReviewDate, end)
		base := tfidf[m.ID]
		out[m.ID] = domain.EvidenceScore{
			ReviewID:       m.ID,
			ReviewDate:     m.ReviewDate,
			Severity:       sev,
			Score:          roundScore(math.Max(0, base*sevW*recW)),
			TFIDF:          base,
			Recency:        recW,
			SeverityWeight: sevW,
		}
	}
	return out
}

// recency decays linearly from 1 at end to the floor at periodDays before.
func (s *Selector) recency(date string, end time.Time) float64 {
	t, ok := domain.ParseReviewDate(date)
	if !ok {
		return recencyFloor
	}
	days := end.Sub(t).Hours() / 24
	w := 1 - days/float64(s.periodDays)
	return math.Max(recencyFloor, math.Min(1, w))
}

// PeriodEnd returns the latest parseable member date, or the zero time.
func PeriodEnd(members []Candidate) time.Time {
	var end time.Time
	for _, m := range members {
		if t, ok := domain.ParseReviewDate(m.ReviewDate); ok && t.After(end) {
			end = t
		}
	}
	return end
}

// tfidfSums returns sum over terms of (tf/len) * idf for each member.
func tfidfSums(members []Candidate) map[string]float64 {
	df := make(map[string]int)
	docs := make(map[string][]string, len(members))
	for _, m := range members {
		toks := Tokenize(m.Body)
		docs[m.ID] = toks
		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	n := float64(max(1, len(members)))
	idf := make(map[string]float64, len(df))
	for term, d := range df {
		idf[term] = math.Log((n+1)/(float64(d)+1)) + 1
	}

	out := make(map[string]float64, len(members))
	for _, m := range members {
		toks := docs[m.ID]
		if len(toks) == 0 {
			out[m.ID] = 0
			continue
		}
		tf := make(map[string]int)
		for _, t := range toks {
			tf[t]++
		}
		terms := make([]string, 0, len(tf))
		for t := range tf {
			terms = append(terms, t)
		}
		slices.Sort(terms)

		var sum float64
		denom := float64(len(toks))
		for _, t := range terms {
			sum += float64(tf[t]) / denom * idf[t]
		}
		out[m.ID] = roundScore(sum)
	}
	return out
}

func rank(members []Candidate, scores map[string]domain.EvidenceScore) []Candidate {
	sorted := slices.Clone(members)
	slices.SortStableFunc(sorted, func(a, b Candidate) int {
		if c := cmp.Compare(scores[b.ID].Score, scores[a.ID].Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ReviewDate, b.ReviewDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

func roundScore(v float64) float64 {
	return math.Round(v*scoreScale) / scoreScale
}
