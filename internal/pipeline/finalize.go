package pipeline

import (
	"context"
	"fmt"

	"tickd/internal/gsi"
)

// finalize converts the in-progress session into a permanent match record,
// exactly once per detected match end. Steps that fail before the session is
// saved are safe to retry: the record write is guarded by the saved-match
// key and all stat updates are idempotent increments.
func (p *Pipeline) finalize(ctx context.Context, sess *SessionState, tick *gsi.Tick, v endVerdict) error {
	mapName := tick.Map.Name
	ct, ts := tick.Map.CTScore, tick.Map.TScore

	key := matchKey(mapName, ct, ts)
	if key == sess.LastSavedMatchKey {
		p.log.Debugf("match %s already saved for %s, skipping", key, sess.SteamID)
		return nil
	}

	team := sess.LastTeam
	if tick.My != nil && tick.My.Team != "" {
		team = tick.My.Team
	}

	score, opponent := ct, ts
	if team == "T" {
		score, opponent = ts, ct
	}

	final := p.finalCounters(tick, sess)

	// Refuse to write a meaningless record: something must have happened.
	if final.Kills+final.Deaths+final.Assists+final.MVPs == 0 && ct+ts == 0 && !v.gameOver {
		p.log.Debugf("empty terminal tick for %s on %s, not saving", sess.SteamID, mapName)
		return nil
	}

	result, reason := classifyResult(score, opponent, v)

	var duration int64
	if sess.MatchStartedAt > 0 && tick.ProviderTS > sess.MatchStartedAt {
		duration = tick.ProviderTS - sess.MatchStartedAt
	}

	rec := &MatchRecord{
		SteamID:       sess.SteamID,
		MapName:       mapName,
		Mode:          tick.Map.Mode,
		InferredMode:  v.inferredMode,
		Result:        result,
		ResultReason:  reason,
		Kills:         final.Kills,
		Deaths:        final.Deaths,
		Assists:       final.Assists,
		MVPs:          final.MVPs,
		Score:         score,
		OpponentScore: opponent,
		DurationSec:   duration,
	}
	if err := p.store.CreateMatch(ctx, rec); err != nil {
		return fmt.Errorf("save match record: %w", err)
	}
	sess.LastSavedMatchKey = key
	p.log.Infof("match saved for %s: %s %s %d-%d (%s)", sess.SteamID, mapName, result, score, opponent, reason)

	wins := int64(0)
	if result == ResultWin {
		wins = 1
	}
	if err := p.store.AddPlayerTotals(ctx, sess.SteamID, TotalsDelta{Matches: 1, Wins: wins}); err != nil {
		return fmt.Errorf("increment match totals: %w", err)
	}

	// Cross-check the incremental totals against the deduplicated history.
	// Best effort: the record is already written, so a failure here only
	// delays the self-heal until the next recomputation.
	if _, _, err := p.Recompute(ctx, sess.SteamID); err != nil {
		p.log.Warnf("recompute after match save failed for %s: %v", sess.SteamID, err)
	}

	mapDelta := MapDelta{Matches: 1, Kills: final.Kills, Deaths: final.Deaths}
	switch result {
	case ResultWin:
		mapDelta.Wins = 1
	case ResultLoss:
		mapDelta.Losses = 1
	}
	if err := p.store.AddMapStats(ctx, sess.SteamID, mapName, mapDelta); err != nil {
		return fmt.Errorf("increment map stats: %w", err)
	}

	// Attribute any kills still below the watermark using the best
	// terminal weapon information available.
	if err := p.reconcileKills(ctx, sess, final.Kills, tick.My); err != nil {
		return err
	}

	// Reset for the next match. The saved-match key is deliberately kept so
	// repeated terminal ticks for this match stay behind the guard.
	sess.Kills = 0
	sess.Deaths = 0
	sess.Assists = 0
	sess.MVPs = 0
	sess.AttributedKills = 0
	sess.MatchStartedAt = 0
	sess.LastActiveWeapon = ""
	sess.LastRound = 0
	sess.LastStats = nil
	sess.LastProviderTS = 0

	return nil
}

// finalCounters resolves the match-final counters from the best available
// source: the tick's verified block, then the session's last verified
// snapshot, then the session counters themselves.
func (p *Pipeline) finalCounters(tick *gsi.Tick, sess *SessionState) gsi.Counters {
	if tick.My != nil && tick.My.Counters != nil && tick.My.Source != gsi.SourceSession {
		return *tick.My.Counters
	}
	if sess.LastStats != nil {
		return *sess.LastStats
	}
	return gsi.Counters{
		Kills:   sess.Kills,
		Deaths:  sess.Deaths,
		Assists: sess.Assists,
		MVPs:    sess.MVPs,
	}
}

// classifyResult decides win/loss/tie and the reason. A terminal phase with
// a leading score below the expected win threshold means the losing side
// surrendered.
func classifyResult(score, opponent int, v endVerdict) (string, string) {
	if score == opponent {
		return ResultTie, ReasonTie
	}
	reason := ReasonNormal
	hi := score
	if opponent > hi {
		hi = opponent
	}
	if v.gameOver && hi < v.winThreshold {
		reason = ReasonSurrender
	}
	if score > opponent {
		return ResultWin, reason
	}
	return ResultLoss, reason
}

func matchKey(mapName string, ct, t int) string {
	return fmt.Sprintf("%s|%d-%d", mapName, ct, t)
}
