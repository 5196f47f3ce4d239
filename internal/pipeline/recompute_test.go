package pipeline

import (
	"context"
	"testing"
	"time"

	"tickd/internal/rules"
)

func rec(mapName string, score, opponent int, result, reason string, kills int64, created time.Time) MatchRecord {
	return MatchRecord{
		SteamID:       subject,
		MapName:       mapName,
		Result:        result,
		ResultReason:  reason,
		Kills:         kills,
		Score:         score,
		OpponentScore: opponent,
		CreatedAt:     created,
	}
}

func TestDedupMatchesKeepsMostFinalPerBucket(t *testing.T) {
	r := rules.Default()
	base := time.Date(2026, time.March, 4, 20, 10, 0, 0, time.UTC)

	// The 12-12 snapshot was saved first; three minutes later the real final
	// 13-12 came through. Same map, same hour: only the latter survives.
	recs := []MatchRecord{
		rec("de_mirage", 12, 12, ResultTie, ReasonTie, 18, base),
		rec("de_mirage", 13, 12, ResultWin, ReasonNormal, 20, base.Add(3*time.Minute)),
	}

	kept := DedupMatches(recs, r)
	if len(kept) != 1 {
		t.Fatalf("expected 1 record after dedup, got %d", len(kept))
	}
	if kept[0].Score != 13 || kept[0].Kills != 20 {
		t.Fatalf("kept the wrong record: %+v", kept[0])
	}
}

func TestDedupMatchesTieBreaksOnLatest(t *testing.T) {
	r := rules.Default()
	base := time.Date(2026, time.March, 4, 20, 10, 0, 0, time.UTC)

	recs := []MatchRecord{
		rec("de_nuke", 13, 9, ResultWin, ReasonNormal, 15, base),
		rec("de_nuke", 13, 9, ResultWin, ReasonNormal, 16, base.Add(time.Minute)),
	}

	kept := DedupMatches(recs, r)
	if len(kept) != 1 || kept[0].Kills != 16 {
		t.Fatalf("expected the later record to win the bucket, got %+v", kept)
	}
}

func TestDedupMatchesFiltersInvalidRecords(t *testing.T) {
	r := rules.Default()
	base := time.Date(2026, time.March, 4, 20, 10, 0, 0, time.UTC)

	recs := []MatchRecord{
		// No map, a non-competitive map, and a scoreline that never cleared a
		// threshold are all dropped; the surrender bypasses the threshold check.
		rec("", 13, 7, ResultWin, ReasonNormal, 10, base),
		rec("ar_shoots", 13, 7, ResultWin, ReasonNormal, 10, base),
		rec("de_dust2", 7, 5, ResultWin, ReasonNormal, 10, base),
		rec("de_dust2", 9, 2, ResultWin, ReasonSurrender, 10, base.Add(time.Second)),
		rec("de_inferno", 13, 11, ResultWin, ReasonNormal, 22, base),
	}

	kept := DedupMatches(recs, r)
	if len(kept) != 2 {
		t.Fatalf("expected 2 valid records, got %d: %+v", len(kept), kept)
	}
	byMap := map[string]MatchRecord{}
	for _, k := range kept {
		byMap[k.MapName] = k
	}
	if _, ok := byMap["de_dust2"]; !ok {
		t.Fatalf("surrender record should have survived filtering")
	}
	if _, ok := byMap["de_inferno"]; !ok {
		t.Fatalf("normal finished record should have survived filtering")
	}
}

func TestDedupMatchesSeparateHourBuckets(t *testing.T) {
	r := rules.Default()
	base := time.Date(2026, time.March, 4, 20, 59, 0, 0, time.UTC)

	recs := []MatchRecord{
		rec("de_ancient", 13, 10, ResultWin, ReasonNormal, 14, base),
		rec("de_ancient", 13, 4, ResultWin, ReasonNormal, 19, base.Add(5*time.Minute)), // next hour
	}

	kept := DedupMatches(recs, r)
	if len(kept) != 2 {
		t.Fatalf("records in different hour buckets must both survive, got %d", len(kept))
	}
	// Output is newest-first.
	if !kept[0].CreatedAt.After(kept[1].CreatedAt) {
		t.Fatalf("dedup output not sorted newest-first")
	}
}

func TestRecomputePersistsTotals(t *testing.T) {
	p, store := newTestPipeline()
	ctx := context.Background()
	base := time.Date(2026, time.March, 4, 20, 10, 0, 0, time.UTC)

	seed := []MatchRecord{
		rec("de_mirage", 12, 12, ResultTie, ReasonTie, 18, base),
		rec("de_mirage", 13, 12, ResultWin, ReasonNormal, 20, base.Add(3*time.Minute)),
		rec("de_nuke", 13, 2, ResultLoss, ReasonNormal, 6, base.Add(2*time.Hour)),
	}
	for i := range seed {
		if err := store.CreateMatch(ctx, &seed[i]); err != nil {
			t.Fatalf("CreateMatch: %v", err)
		}
	}

	totals, kept, err := p.Recompute(ctx, subject)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if totals.Matches != 2 || totals.Wins != 1 {
		t.Fatalf("expected 2 matches / 1 win, got %d/%d", totals.Matches, totals.Wins)
	}
	if totals.Kills != 26 {
		t.Fatalf("expected 26 kills over the deduplicated set, got %d", totals.Kills)
	}
	if len(kept) != 2 {
		t.Fatalf("expected 2 deduplicated records, got %d", len(kept))
	}

	st := playerStats(t, store)
	if st.TotalMatches != 2 || st.TotalWins != 1 {
		t.Fatalf("persisted totals wrong: matches=%d wins=%d", st.TotalMatches, st.TotalWins)
	}
	if st.WinRate != 0.5 {
		t.Fatalf("expected win rate 0.5, got %v", st.WinRate)
	}
}
