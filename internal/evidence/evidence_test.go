package evidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

func ids(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"stopwords and short tokens", "The App's onboarding was GREAT!! x 2fa", []string{"app", "onboarding", "great", "2fa"}},
		{"fullwidth folded", "ＰＲＩＣＩＮＧ pricing", []string{"pricing", "pricing"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestSelect_HighestSeverityRecentDistinctFirst(t *testing.T) {
	members := []Candidate{
		{ID: "r1", Body: "export button slow export", ReviewDate: "2025-01-10", Severity: domain.SeverityLow},
		{ID: "r2", Body: "export slow again", ReviewDate: "2025-02-01", Severity: domain.SeverityMedium},
		{ID: "r3", Body: "slow export reports", ReviewDate: "2025-02-15", Severity: domain.SeverityLow},
		{ID: "r4", Body: "export slow", ReviewDate: "2025-01-20", Severity: domain.SeverityMedium},
		{ID: "r5", Body: "dashboard crashes losing invoices", ReviewDate: "2025-03-01", Severity: domain.SeverityHigh},
	}

	got := NewSelector(3, 90).Select(members)

	require.Len(t, got, 3)
	assert.Equal(t, "r5", got[0].ID)
}

func TestSelect_Deterministic(t *testing.T) {
	members := []Candidate{
		{ID: "a", Body: "support never answered my ticket", ReviewDate: "2025-05-01", Severity: domain.SeverityHigh},
		{ID: "b", Body: "support answered late", ReviewDate: "2025-05-03"},
		{ID: "c", Body: "ticket closed without answer", ReviewDate: "2025-04-11", Severity: domain.SeverityMedium},
	}
	reversed := []Candidate{members[2], members[1], members[0]}

	s := NewSelector(2, 90)
	assert.Equal(t, ids(s.Select(members)), ids(s.Select(reversed)))
}

func TestSelectAt_TieBreakByDateThenID(t *testing.T) {
	end := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	members := []Candidate{
		{ID: "z", Body: "billing double charged", ReviewDate: "2024-01-01", Severity: domain.SeverityHigh},
		{ID: "b", Body: "billing double charged", ReviewDate: "2024-01-05", Severity: domain.SeverityHigh},
		{ID: "a", Body: "billing double charged", ReviewDate: "2024-01-05", Severity: domain.SeverityHigh},
	}

	got := NewSelector(3, 90).SelectAt(members, end)

	assert.Equal(t, []string{"z", "a", "b"}, ids(got))
}

func TestSelect_KLargerThanMembers(t *testing.T) {
	members := []Candidate{
		{ID: "a", Body: "slow sync", ReviewDate: "2025-01-01"},
		{ID: "b", Body: "sync fails", ReviewDate: "2025-01-02"},
	}

	assert.Len(t, NewSelector(10, 90).Select(members), 2)
	assert.Nil(t, NewSelector(3, 90).Select(nil))
}

func TestSelect_EvidenceSubsetOfMembers(t *testing.T) {
	members := []Candidate{
		{ID: "a", Body: "crash on login", ReviewDate: "2025-01-01"},
		{ID: "b", Body: "login crash again", ReviewDate: "2025-01-02"},
		{ID: "c", Body: "cannot log in", ReviewDate: "bad date"},
	}
	memberIDs := ids(members)
	for _, c := range NewSelector(2, 90).Select(members) {
		assert.Contains(t, memberIDs, c.ID)
	}
}

func TestRecency(t *testing.T) {
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	s := NewSelector(5, 90)

	assert.InDelta(t, 1.0, s.recency("2025-03-31", end), 1e-9)
	assert.InDelta(t, 0.5, s.recency("2025-02-14", end), 1e-9)
	assert.InDelta(t, 0.1, s.recency("2020-01-01", end), 1e-9)
	assert.InDelta(t, 0.1, s.recency("not a date", end), 1e-9)
	assert.InDelta(t, 1.0, s.recency("2025-04-10", end), 1e-9)
}

func TestExplain(t *testing.T) {
	members := []Candidate{
		{ID: "a", Body: "pricing too high", ReviewDate: "2025-06-30", Severity: domain.SeverityHigh},
		{ID: "b", Body: "pricing fair", ReviewDate: "2025-06-01"},
	}

	scores := NewSelector(5, 90).Explain(members)

	require.Len(t, scores, 2)
	assert.Equal(t, "a", scores[0].ReviewID)
	assert.Equal(t, 3.0, scores[0].SeverityWeight)
	assert.Equal(t, 1.0, scores[0].Recency)
	assert.Equal(t, domain.SeverityMedium, scores[1].Severity)
	assert.Greater(t, scores[0].Score, scores[1].Score)
}

func TestNewSelector_Defaults(t *testing.T) {
	s := NewSelector(0, -1)
	assert.Equal(t, DefaultK, s.K())
	assert.Equal(t, DefaultPeriodDays, s.periodDays)
}
