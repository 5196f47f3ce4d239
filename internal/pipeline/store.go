package pipeline

import (
	"context"
	"errors"
)

// ErrSessionConflict is returned by SaveSession when the session document
// was modified since it was read. The caller retries the whole tick; every
// pipeline operation is idempotent under redelivery.
var ErrSessionConflict = errors.New("session modified concurrently")

// Store is the durable document store the pipeline runs against. Each
// method is one atomic operation on a single document; no call spans two
// players and the pipeline never relies on in-process locking.
type Store interface {
	// Session returns the player's session state, or a fresh zero-valued
	// session (Version 0) when none exists yet.
	Session(ctx context.Context, steamID string) (*SessionState, error)

	// SaveSession persists the session with optimistic concurrency: the
	// write succeeds only if the stored version still matches s.Version,
	// otherwise ErrSessionConflict is returned.
	SaveSession(ctx context.Context, s *SessionState) error

	// AddPlayerTotals atomically increments lifetime counters and refreshes
	// the derived kd/win ratios.
	AddPlayerTotals(ctx context.Context, steamID string, d TotalsDelta) error

	// AddWeaponKills atomically increments one weapon's kill counter.
	AddWeaponKills(ctx context.Context, steamID, weapon string, kills int64) error

	// AddMapStats atomically increments one map's aggregates.
	AddMapStats(ctx context.Context, steamID, mapName string, d MapDelta) error

	// CreateMatch appends an immutable match record.
	CreateMatch(ctx context.Context, rec *MatchRecord) error

	// RecentMatches returns the player's match history, newest first,
	// capped at limit records.
	RecentMatches(ctx context.Context, steamID string, limit int) ([]MatchRecord, error)

	// SetMatchTotals overwrites the recomputed match summary fields
	// (matches, wins, win rate) while leaving the delta-maintained
	// kill/death counters untouched.
	SetMatchTotals(ctx context.Context, steamID string, t MatchTotals) error

	// PlayerStats returns the player's lifetime totals, or a zero-valued
	// record when none exists.
	PlayerStats(ctx context.Context, steamID string) (*PlayerStats, error)
}
