// Package pipeline turns the per-player stream of telemetry ticks into
// durable, de-duplicated match records and monotonically-correct lifetime
// statistics. All state lives in the store; the pipeline itself holds no
// mutable per-player state, so ticks may be retried or redelivered freely.
package pipeline

import (
	"time"

	"tickd/internal/gsi"
)

// SessionState is the per-player working memory between ticks. It is created
// lazily on the first tick, reset when a match ends and versioned so
// concurrent writers for the same player cannot clobber each other.
type SessionState struct {
	SteamID string

	// Last-seen cumulative counters from the telemetry source.
	Kills   int64
	Deaths  int64
	Assists int64
	MVPs    int64

	// AttributedKills is the watermark: how many of Kills have already been
	// assigned to a weapon.
	AttributedKills int64

	LastActiveWeapon string
	LastRound        int

	// MatchStartedAt is the provider timestamp of the first tick of the
	// current match; zero means no match is in progress.
	MatchStartedAt int64

	// LastSavedMatchKey guards against re-saving the same finished match.
	LastSavedMatchKey string

	LastTeam       string
	LastStats      *gsi.Counters // last verified snapshot of the subject's counters
	LastProviderTS int64

	CurrentMap string
	LastSeenAt int64

	// Version increments on every save; saves against a stale version fail
	// with ErrSessionConflict.
	Version int64
}

// Match results.
const (
	ResultWin  = "win"
	ResultLoss = "loss"
	ResultTie  = "tie"
)

// Match result reasons.
const (
	ReasonNormal    = "normal"
	ReasonSurrender = "surrender"
	ReasonTie       = "tie"
)

// MatchRecord is one finished match. Immutable once written.
type MatchRecord struct {
	ID            string
	SteamID       string
	MapName       string
	Mode          string
	InferredMode  string
	Result        string
	ResultReason  string
	Kills         int64
	Deaths        int64
	Assists       int64
	MVPs          int64
	Score         int
	OpponentScore int
	DurationSec   int64
	CreatedAt     time.Time
}

// PlayerStats are the lifetime totals for one player. Counter fields are
// only ever incremented by deltas, never overwritten from a tick.
type PlayerStats struct {
	SteamID      string
	TotalKills   int64
	TotalDeaths  int64
	TotalAssists int64
	TotalMVPs    int64
	TotalMatches int64
	TotalWins    int64
	KDRatio      float64
	WinRate      float64
	UpdatedAt    time.Time
}

// TotalsDelta is an increment against a player's lifetime totals.
type TotalsDelta struct {
	Kills   int64
	Deaths  int64
	Assists int64
	MVPs    int64
	Matches int64
	Wins    int64
}

// IsZero reports whether the delta would change nothing.
func (d TotalsDelta) IsZero() bool {
	return d.Kills == 0 && d.Deaths == 0 && d.Assists == 0 &&
		d.MVPs == 0 && d.Matches == 0 && d.Wins == 0
}

// MapDelta is an increment against a player's per-map aggregates.
type MapDelta struct {
	Matches int64
	Wins    int64
	Losses  int64
	Kills   int64
	Deaths  int64
	Rounds  int64
}

// MatchTotals is the recomputed match summary written by the self-heal path.
type MatchTotals struct {
	Matches int64
	Wins    int64
	WinRate float64
}

// RecomputedTotals is the output of recomputing lifetime totals from the
// deduplicated match history.
type RecomputedTotals struct {
	Matches int64
	Wins    int64
	Kills   int64
	Deaths  int64
	WinRate float64
}
