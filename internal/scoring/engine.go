// Package scoring computes ESG category scores and period-over-period trends from
// metric entries. It performs no I/O and holds no shared state.
package scoring

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Clock returns the current time. Engine uses it to derive the trend reference date.
type Clock func() time.Time

// Options tunes how a snapshot is aggregated.
type Options struct {
	// IgnoreEmptyCategories excludes categories without entries from the overall average.
	// When false every category contributes, an empty one scoring 0.
	IgnoreEmptyCategories bool
}

// Engine builds score snapshots.
type Engine struct {
	clock Clock
	opts  Options
}

// NewEngine creates an Engine. A nil clock defaults to time.Now.
func NewEngine(clock Clock, opts Options) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{clock: clock, opts: opts}
}

// Snapshot classifies and scores entries against today's date.
func (e *Engine) Snapshot(entries []MetricEntry) ScoreSnapshot {
	return e.SnapshotAt(entries, e.clock())
}

// SnapshotAt classifies and scores entries using referenceDate for the trend window.
func (e *Engine) SnapshotAt(entries []MetricEntry, referenceDate time.Time) ScoreSnapshot {
	b := Classify(entries)

	env := Score(b.Environmental)
	soc := Score(b.Social)
	gov := Score(b.Governance)

	var overall CategoryScore
	if e.opts.IgnoreEmptyCategories {
		overall = overallOfNonEmpty(b, env, soc, gov)
	} else {
		overall = OverallScore(env, soc, gov)
	}

	return ScoreSnapshot{
		Environmental: env,
		Social:        soc,
		Governance:    gov,
		Overall:       overall,
		Trends:        ComputeTrends(entries, referenceDate),
		ReferenceDate: dateOf(referenceDate),
		EntryCount:    len(entries),
	}
}

// Classify buckets entries per category. Rules are applied independently, so an entry
// matching several rules lands in several buckets. Entries matching none are dropped.
func Classify(entries []MetricEntry) Buckets {
	var b Buckets
	for _, e := range entries {
		if isEnvironmental(e) {
			b.Environmental = append(b.Environmental, e)
		}
		if isSocial(e) {
			b.Social = append(b.Social, e)
		}
		if isGovernance(e) {
			b.Governance = append(b.Governance, e)
		}
	}
	return b
}

// Score returns the rounded share of Green entries as a percentage, or 0 for no entries.
func Score(entries []MetricEntry) CategoryScore {
	if len(entries) == 0 {
		return 0
	}
	green := 0
	for _, e := range entries {
		if e.Performance == PerformanceGreen {
			green++
		}
	}
	return CategoryScore(roundHalfUp(100 * float64(green) / float64(len(entries))))
}

// OverallScore is the unweighted, rounded mean of the three category scores.
func OverallScore(env, soc, gov CategoryScore) CategoryScore {
	return CategoryScore(roundHalfUp(float64(env+soc+gov) / 3))
}

func overallOfNonEmpty(b Buckets, env, soc, gov CategoryScore) CategoryScore {
	var sum float64
	n := 0
	for _, c := range []struct {
		size  int
		score CategoryScore
	}{
		{len(b.Environmental), env},
		{len(b.Social), soc},
		{len(b.Governance), gov},
	} {
		if c.size > 0 {
			sum += float64(c.score)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return CategoryScore(roundHalfUp(sum / float64(n)))
}

// ComputeTrends compares each category between the month before referenceDate and
// everything older. The trend rules are narrower than Classify: Environmental only
// counts Carbon metrics and Governance only Verified entries.
//
// An empty prior period scores 0, so the delta equals the current score.
func ComputeTrends(entries []MetricEntry, referenceDate time.Time) Trends {
	cutoff := TrendCutoff(referenceDate)

	var prior, current []MetricEntry
	for _, e := range entries {
		if !e.HasEntryDate() {
			continue
		}
		if dateOf(e.EntryDate).Before(cutoff) {
			prior = append(prior, e)
		} else {
			current = append(current, e)
		}
	}

	t := Trends{
		Environmental: delta(prior, current, isCarbonMetric),
		Social:        delta(prior, current, isSocial),
		Governance:    delta(prior, current, isVerified),
	}
	t.Overall = (t.Environmental + t.Social + t.Governance) / 3
	return t
}

// TrendCutoff is referenceDate minus one calendar month, at midnight UTC. A day that does not
// exist in the previous month is clamped to its last day.
func TrendCutoff(referenceDate time.Time) time.Time {
	return AddMonths(dateOf(referenceDate), -1)
}

// AddMonths shifts t by n calendar months, clamping the day to the target month's length.
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	last := target.AddDate(0, 1, -1).Day()
	day := min(t.Day(), last)
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func delta(prior, current []MetricEntry, keep func(MetricEntry) bool) TrendDelta {
	return TrendDelta(Score(filter(current, keep)) - Score(filter(prior, keep)))
}

func filter(entries []MetricEntry, keep func(MetricEntry) bool) []MetricEntry {
	var out []MetricEntry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

var socialDoctypes = []string{DoctypeWorkOrder, DoctypeProductionPlan}

func isCarbonMetric(e MetricEntry) bool {
	return strings.Contains(e.Metric, carbonMarker)
}

func isEnvironmental(e MetricEntry) bool {
	return isCarbonMetric(e) || e.SourceDoctype == DoctypeStockEntry
}

func isSocial(e MetricEntry) bool {
	return slices.Contains(socialDoctypes, e.SourceDoctype)
}

func isVerified(e MetricEntry) bool {
	return e.VerificationStatus == VerificationVerified
}

func isGovernance(e MetricEntry) bool {
	return e.SourceDoctype == DoctypePurchaseInvoice || isVerified(e)
}

// roundHalfUp rounds half away from zero, which is half-up for the non-negative ratios
// scored here.
func roundHalfUp(v float64) float64 {
	return math.Round(v)
}

// dateOf keeps the wall-clock calendar date of t as midnight UTC, so dates recorded in
// different zones compare by day.
func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
