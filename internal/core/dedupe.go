package core

import (
	"strconv"
	"strings"
	"time"
)

// A PlanGroup is the set of plan records sharing one identity signature.
// Groups exist only transiently during deduplication; one member is chosen
// as the canonical display record and the rest are folded into its execution
// summary.
type PlanGroup struct {
	Signature string
	Plans     []Plan
}

// DisplayPlan is a canonical plan augmented with the figures the listing UI
// shows: the merged execution summary of its whole group plus the accrual and
// projection numbers. Never written back to storage.
type DisplayPlan struct {
	Plan
	GroupSize       int
	MemberIDs       []string
	ExecutedCount   int64
	ExecutedTotal   Money
	ExecutedLast    time.Time
	Accrued         Money
	Projected       Money
	HasProjection   bool
	AccruedPercent  float64
	ElapsedCount    int
	TotalCount      int
	HasTotalCount   bool
}

const signatureDateLayout = "2006-01-02"

// Signature derives the identity key under which near-duplicate plan records
// collapse: two plans with the same signature are the same logical plan.
func Signature(p Plan) string {
	return strings.Join([]string{
		string(p.Type),
		strconv.FormatInt(p.Amount.Cents, 10),
		p.Currency,
		p.CategoryID,
		p.WalletID,
		string(p.Frequency),
		signatureDate(p.StartDate),
		signatureDate(p.EndDate),
		strings.ToLower(strings.TrimSpace(p.Description)),
	}, "|")
}

func signatureDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(signatureDateLayout)
}

// GroupBySignature partitions plans into groups of identical signatures.
// Group order and member order both follow input iteration order exactly, so
// the first-seen tie-break in SelectCanonical stays deterministic.
func GroupBySignature(plans []Plan) []PlanGroup {
	index := make(map[string]int, len(plans))
	groups := make([]PlanGroup, 0, len(plans))
	for _, p := range plans {
		sig := Signature(p)
		i, ok := index[sig]
		if !ok {
			index[sig] = len(groups)
			groups = append(groups, PlanGroup{Signature: sig})
			i = len(groups) - 1
		}
		groups[i].Plans = append(groups[i].Plans, p)
	}
	return groups
}

// SelectCanonical picks the group member with the highest recency score,
// where the score is the latest of updated_at, next_execution_date and
// created_at. Ties keep the first member encountered.
func SelectCanonical(g PlanGroup) Plan {
	best := g.Plans[0]
	bestScore := recencyScore(best)
	for _, p := range g.Plans[1:] {
		if s := recencyScore(p); s.After(bestScore) {
			best = p
			bestScore = s
		}
	}
	return best
}

func recencyScore(p Plan) time.Time {
	score := p.UpdatedAt
	if p.NextExecutionDate.After(score) {
		score = p.NextExecutionDate
	}
	if p.CreatedAt.After(score) {
		score = p.CreatedAt
	}
	return score
}

// MergeExecutionSummaries unions the execution history of a whole group:
// counts and totals are summed across all member ids, the last date is the
// maximum seen. Members with no recorded summary contribute zero.
func MergeExecutionSummaries(memberIDs []string, byPlanID map[string]ExecutionSummary) ExecutionSummary {
	var merged ExecutionSummary
	for _, id := range memberIDs {
		s, ok := byPlanID[id]
		if !ok {
			continue
		}
		merged.Count += s.Count
		merged.TotalCents += s.TotalCents
		if s.LastDate.After(merged.LastDate) {
			merged.LastDate = s.LastDate
		}
	}
	return merged
}

// Deduplicate collapses duplicate plan records into one display record per
// distinct signature, attaching the group-wide execution summary and the
// accrual figures as of now. Every input plan id lands in exactly one group.
func Deduplicate(plans []Plan, summaries map[string]ExecutionSummary, now time.Time) []DisplayPlan {
	groups := GroupBySignature(plans)
	out := make([]DisplayPlan, 0, len(groups))
	for _, g := range groups {
		canonical := SelectCanonical(g)
		ids := make([]string, len(g.Plans))
		for i, p := range g.Plans {
			ids[i] = p.ID
		}
		merged := MergeExecutionSummaries(ids, summaries)

		d := DisplayPlan{
			Plan:          canonical,
			GroupSize:     len(g.Plans),
			MemberIDs:     ids,
			ExecutedCount: merged.Count,
			ExecutedTotal: Money{Cents: merged.TotalCents},
			ExecutedLast:  merged.LastDate,
			Accrued:       AccruedAmount(canonical, now),
			ElapsedCount:  ElapsedOccurrences(canonical, now),
		}
		if projected, ok := ProjectedAmount(canonical); ok {
			d.Projected = projected
			d.HasProjection = true
		}
		if total, ok := TotalOccurrences(canonical); ok {
			d.TotalCount = total
			d.HasTotalCount = true
		}
		d.AccruedPercent = AccruedPercent(canonical, now)
		out = append(out, d)
	}
	return out
}
