// Package report aggregates completed transfers into a run summary.
//
// The CLI feeds a [Collector] from the scheduler's completion callback and
// logs the resulting [Summary] when the run finishes: totals, status-code
// tallies, and a latency distribution.
package report

import (
	"math"
	"sort"
	"time"
)

// Summary provides aggregate stats over one run.
type Summary struct {
	// Total is the number of completed transfers, failed or not.
	Total int

	// Succeeded counts transfers that finished without a transfer-level
	// error. A non-2xx status still counts as succeeded; inspect ByStatus
	// for the breakdown.
	Succeeded int

	// Failed counts transfers with a transfer-level error (DNS failure,
	// refused connection, timeout, ...).
	Failed int

	// ByStatus tallies HTTP status codes across succeeded transfers.
	ByStatus map[int]int

	// Latency stats computed over succeeded transfers only.
	Min time.Duration
	Max time.Duration
	Avg time.Duration
	P50 time.Duration
	P90 time.Duration
	P99 time.Duration
}

// Collector accumulates per-transfer observations.
//
// Each scheduler run feeds its own Collector from the completion callback,
// which runs on a single goroutine, so Collector does no locking. When
// multiple schedulers run concurrently, give each its own Collector.
type Collector struct {
	total     int
	failed    int
	byStatus  map[int]int
	durations []time.Duration
}

// New creates an empty [Collector].
func New() *Collector {
	return &Collector{
		byStatus: make(map[int]int),
	}
}

// Record adds one completed transfer. statusCode is ignored when err is
// non-nil; d is the transfer duration.
func (c *Collector) Record(statusCode int, d time.Duration, err error) {
	c.total++
	if err != nil {
		c.failed++
		return
	}
	c.byStatus[statusCode]++
	c.durations = append(c.durations, d)
}

// Summary computes the aggregate stats over everything recorded so far.
func (c *Collector) Summary() Summary {
	s := Summary{
		Total:     c.total,
		Succeeded: c.total - c.failed,
		Failed:    c.failed,
		ByStatus:  make(map[int]int, len(c.byStatus)),
	}
	for code, n := range c.byStatus {
		s.ByStatus[code] = n
	}

	if len(c.durations) == 0 {
		return s
	}

	durs := make([]time.Duration, len(c.durations))
	copy(durs, c.durations)
	sort.Slice(durs, func(i, j int) bool { return durs[i] < durs[j] })

	s.Min = durs[0]
	s.Max = durs[len(durs)-1]
	s.Avg = avgDuration(durs)
	s.P50 = percentileDuration(durs, 0.50)
	s.P90 = percentileDuration(durs, 0.90)
	s.P99 = percentileDuration(durs, 0.99)

	return s
}

func avgDuration(durs []time.Duration) time.Duration {
	var sum int64
	for _, d := range durs {
		sum += int64(d)
	}
	return time.Duration(sum / int64(len(durs)))
}

// percentileDuration returns the p-th percentile of a sorted slice, with
// linear interpolation between neighboring ranks.
func percentileDuration(sorted []time.Duration, p float64) time.Duration {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	loN := float64(sorted[lo])
	hiN := float64(sorted[hi])
	return time.Duration(loN + (hiN-loN)*frac)
}
