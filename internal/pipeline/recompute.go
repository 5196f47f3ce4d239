package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tickd/internal/rules"
)

// Recompute rebuilds the player's match summary from the deduplicated match
// history and persists it, self-healing the incremental counters. It returns
// the recomputed totals together with the deduplicated records they were
// summed from.
func (p *Pipeline) Recompute(ctx context.Context, steamID string) (*RecomputedTotals, []MatchRecord, error) {
	recs, err := p.store.RecentMatches(ctx, steamID, p.historyLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("read match history: %w", err)
	}
	kept := DedupMatches(recs, p.rules)

	totals := &RecomputedTotals{}
	for _, r := range kept {
		totals.Matches++
		if r.Result == ResultWin {
			totals.Wins++
		}
		totals.Kills += r.Kills
		totals.Deaths += r.Deaths
	}
	if totals.Matches > 0 {
		totals.WinRate = float64(totals.Wins) / float64(totals.Matches)
	}

	err = p.store.SetMatchTotals(ctx, steamID, MatchTotals{
		Matches: totals.Matches,
		Wins:    totals.Wins,
		WinRate: totals.WinRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("persist recomputed totals: %w", err)
	}
	return totals, kept, nil
}

// dedupBucket groups near-duplicate match records: same map within the same
// hour of creation.
type dedupBucket struct {
	mapName string
	hour    int64
}

// DedupMatches collapses near-duplicate match records into the single most
// final record per map and hour bucket. Records that carry no map name, sit
// on a non-competitive map, or never cleared a win/tie threshold (and were
// not a surrender) are dropped first. Within a bucket the record with the
// higher maximum scoreline wins, ties broken by latest creation time.
// Aggregates must always be computed over this set, never the raw history.
func DedupMatches(recs []MatchRecord, r *rules.Rules) []MatchRecord {
	best := make(map[dedupBucket]MatchRecord)
	for _, rec := range recs {
		if !validRecord(rec, r) {
			continue
		}
		b := dedupBucket{
			mapName: rec.MapName,
			hour:    rec.CreatedAt.Truncate(time.Hour).Unix(),
		}
		cur, ok := best[b]
		if !ok || moreFinal(rec, cur) {
			best[b] = rec
		}
	}

	out := make([]MatchRecord, 0, len(best))
	for _, rec := range best {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func validRecord(rec MatchRecord, r *rules.Rules) bool {
	if rec.MapName == "" || !r.CompetitiveMap(rec.MapName) {
		return false
	}
	if rec.ResultReason == ReasonSurrender {
		return true
	}
	return clearsThreshold(rec, r)
}

// clearsThreshold reports whether the final scoreline is one a finished
// match of any known format could produce.
func clearsThreshold(rec MatchRecord, r *rules.Rules) bool {
	hi := rec.Score
	if rec.OpponentScore > hi {
		hi = rec.OpponentScore
	}
	tbl := r.Thresholds

	if rec.Mode == rules.ModeCasual || rec.InferredMode == rules.ModeCasual {
		return hi >= tbl.Casual.Win
	}
	if hi >= tbl.Regulation.Win || hi >= tbl.Overtime.Win {
		return true
	}
	if rec.Score == rec.OpponentScore &&
		(rec.Score == tbl.Regulation.Tie || rec.Score == tbl.Overtime.Tie) {
		return true
	}
	return false
}

// moreFinal reports whether a should replace b within a dedup bucket.
func moreFinal(a, b MatchRecord) bool {
	am := maxScore(a)
	bm := maxScore(b)
	if am != bm {
		return am > bm
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func maxScore(rec MatchRecord) int {
	if rec.OpponentScore > rec.Score {
		return rec.OpponentScore
	}
	return rec.Score
}
