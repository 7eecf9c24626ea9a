package report

import (
	"errors"
	"testing"
	"time"
)

// TestCollectorEmpty verifies the zero summary for no observations.
func TestCollectorEmpty(t *testing.T) {
	s := New().Summary()

	if s.Total != 0 || s.Succeeded != 0 || s.Failed != 0 {
		t.Errorf("expected zero counts, got %+v", s)
	}
	if len(s.ByStatus) != 0 {
		t.Errorf("expected empty status tally, got %v", s.ByStatus)
	}
	if s.Min != 0 || s.Max != 0 || s.Avg != 0 {
		t.Errorf("expected zero latencies, got %+v", s)
	}
}

// TestCollectorCounts verifies totals, failures, and the status tally.
func TestCollectorCounts(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond, nil)
	c.Record(200, 20*time.Millisecond, nil)
	c.Record(404, 5*time.Millisecond, nil)
	c.Record(0, 0, errors.New("connection refused"))

	s := c.Summary()

	if s.Total != 4 {
		t.Errorf("expected 4 total, got %d", s.Total)
	}
	if s.Succeeded != 3 {
		t.Errorf("expected 3 succeeded, got %d", s.Succeeded)
	}
	if s.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", s.Failed)
	}
	if s.ByStatus[200] != 2 || s.ByStatus[404] != 1 {
		t.Errorf("unexpected status tally %v", s.ByStatus)
	}
	if _, tallied := s.ByStatus[0]; tallied {
		t.Errorf("failed transfer leaked into status tally: %v", s.ByStatus)
	}
}

// TestCollectorLatencies verifies min/max/avg over succeeded transfers only.
func TestCollectorLatencies(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond, nil)
	c.Record(200, 30*time.Millisecond, nil)
	c.Record(200, 20*time.Millisecond, nil)
	c.Record(0, time.Hour, errors.New("timeout")) // must not skew stats

	s := c.Summary()

	if s.Min != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", s.Min)
	}
	if s.Max != 30*time.Millisecond {
		t.Errorf("expected max 30ms, got %s", s.Max)
	}
	if s.Avg != 20*time.Millisecond {
		t.Errorf("expected avg 20ms, got %s", s.Avg)
	}
	if s.P50 != 20*time.Millisecond {
		t.Errorf("expected p50 20ms, got %s", s.P50)
	}
}

// TestPercentileInterpolation verifies ranks between samples interpolate
// linearly.
func TestPercentileInterpolation(t *testing.T) {
	sorted := []time.Duration{
		10 * time.Millisecond,
		20 * time.Millisecond,
		30 * time.Millisecond,
		40 * time.Millisecond,
	}

	// pos = 0.5 * 3 = 1.5, halfway between 20ms and 30ms
	if got := percentileDuration(sorted, 0.50); got != 25*time.Millisecond {
		t.Errorf("expected interpolated p50 25ms, got %s", got)
	}
	if got := percentileDuration(sorted, 0); got != 10*time.Millisecond {
		t.Errorf("expected p0 = min, got %s", got)
	}
	if got := percentileDuration(sorted, 1); got != 40*time.Millisecond {
		t.Errorf("expected p100 = max, got %s", got)
	}
}

// TestSummaryIsSnapshot verifies later records do not mutate an earlier
// summary.
func TestSummaryIsSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond, nil)

	s := c.Summary()
	c.Record(500, 20*time.Millisecond, nil)

	if s.Total != 1 {
		t.Errorf("summary mutated after snapshot: %d", s.Total)
	}
	if _, tallied := s.ByStatus[500]; tallied {
		t.Errorf("status tally shared with collector: %v", s.ByStatus)
	}
}
