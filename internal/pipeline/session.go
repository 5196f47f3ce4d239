package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tickd/internal/gsi"
	"tickd/internal/logging"
	"tickd/internal/rules"
)

// Pipeline applies ticks for one player at a time against the store.
type Pipeline struct {
	store        Store
	rules        *rules.Rules
	log          logging.Interface
	historyLimit int
	now          func() time.Time
}

// New builds a pipeline. historyLimit caps how many match records the
// recomputation path scans; zero means the default of 500.
func New(store Store, r *rules.Rules, historyLimit int) *Pipeline {
	if historyLimit <= 0 {
		historyLimit = 500
	}
	return &Pipeline{
		store:        store,
		rules:        r,
		log:          logging.Logger(),
		historyLimit: historyLimit,
		now:          time.Now,
	}
}

// ApplyTick processes one snapshot for the subject player. The subject's
// identity comes from the transport, never from the snapshot body. Errors
// indicate store failures only; redelivering the same tick after an error is
// always safe.
func (p *Pipeline) ApplyTick(ctx context.Context, subject string, snap *gsi.Snapshot) error {
	if subject == "" {
		return errors.New("empty subject steam id")
	}

	sess, err := p.store.Session(ctx, subject)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	tick := gsi.Normalize(subject, snap, gsi.Fallback{Team: sess.LastTeam, Stats: sess.LastStats})
	sess.LastSeenAt = p.now().Unix()

	// Menu or mapless tick: only bookkeeping is touched.
	if tick.Menu || tick.Map == nil {
		if err := p.store.SaveSession(ctx, sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		return nil
	}

	curr, counted := resolveCounters(tick)
	verdict := p.detectMatchEnd(tick)

	// A terminal tick arriving while no match is in progress is residue from
	// an already-finalized match, whether the end shows as an explicit
	// gameover phase or only in the scoreline. It must not open a new match
	// or move any counter; it may only re-trigger the duplicate-guarded
	// finalization below (a later, more final scoreline still gets saved).
	residue := sess.MatchStartedAt == 0 && verdict.ended

	// New-match boundary: the first provider timestamp seen while no match
	// is in progress starts the match and clears the previous match's guards
	// so they cannot block this one.
	if sess.MatchStartedAt == 0 && !residue && tick.ProviderTS > 0 {
		sess.MatchStartedAt = tick.ProviderTS
		sess.AttributedKills = curr.Kills
		sess.LastSavedMatchKey = ""
		sess.LastRound = 0
		sess.LastActiveWeapon = ""
		p.log.Infof("match started for %s on %s", subject, tick.Map.Name)
	}

	sess.CurrentMap = tick.Map.Name
	if tick.My != nil && tick.My.Source != gsi.SourceSession {
		if tick.My.Team != "" {
			sess.LastTeam = tick.My.Team
		}
		if tick.My.Counters != nil {
			c := *tick.My.Counters
			sess.LastStats = &c
			sess.LastProviderTS = tick.ProviderTS
		}
		if tick.My.ActiveWeapon != "" {
			sess.LastActiveWeapon = tick.My.ActiveWeapon
		}
	}

	if counted && !residue {
		// Lifetime counters move by clamped deltas only: a regressed or
		// duplicated tick produces a zero delta, never a decrement.
		delta := TotalsDelta{
			Kills:   clamp(curr.Kills - sess.Kills),
			Deaths:  clamp(curr.Deaths - sess.Deaths),
			Assists: clamp(curr.Assists - sess.Assists),
			MVPs:    clamp(curr.MVPs - sess.MVPs),
		}
		if !delta.IsZero() {
			if err := p.store.AddPlayerTotals(ctx, subject, delta); err != nil {
				return fmt.Errorf("increment lifetime stats: %w", err)
			}
		}

		// Session counters never regress mid-match, so a stale tick cannot
		// set up a later double count.
		sess.Kills = max64(sess.Kills, curr.Kills)
		sess.Deaths = max64(sess.Deaths, curr.Deaths)
		sess.Assists = max64(sess.Assists, curr.Assists)
		sess.MVPs = max64(sess.MVPs, curr.MVPs)

		// Each distinct round number observed counts once toward the map's
		// round total.
		if r := tick.Map.Round; r > sess.LastRound {
			if err := p.store.AddMapStats(ctx, subject, tick.Map.Name, MapDelta{Rounds: 1}); err != nil {
				return fmt.Errorf("increment map rounds: %w", err)
			}
			sess.LastRound = r
		}

		if err := p.reconcileKills(ctx, sess, sess.Kills, tick.My); err != nil {
			return err
		}
	}

	if verdict.ended && p.rules.CompetitiveMap(tick.Map.Name) {
		if err := p.finalize(ctx, sess, tick, verdict); err != nil {
			return err
		}
	}

	if err := p.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// resolveCounters picks the current cumulative counters for this tick. The
// normalizer already applied the block-precedence rules; a tick with no
// verified counters yields counted=false and triggers a bookkeeping-only
// persist.
func resolveCounters(t *gsi.Tick) (gsi.Counters, bool) {
	if t.My != nil && t.My.Counters != nil && t.My.Source != gsi.SourceSession {
		return *t.My.Counters, true
	}
	return gsi.Counters{}, false
}

func clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
