// Package gsi models the game-state-integration snapshots the game client
// posts while a match is running, and normalizes them into ticks the
// pipeline can consume.
package gsi

// Snapshot is one raw telemetry payload. Every block is optional; the
// client omits blocks it has no data for.
type Snapshot struct {
	Provider   *Provider          `json:"provider"`
	Map        *Map               `json:"map"`
	Round      *Round             `json:"round"`
	Player     *Player            `json:"player"`
	AllPlayers map[string]*Player `json:"allplayers"`
}

// Provider identifies the telemetry source and carries its own clock.
type Provider struct {
	Name      string `json:"name"`
	SteamID   string `json:"steamid"`
	Timestamp int64  `json:"timestamp"`
}

// Map carries map name, labeled mode, phase and the per-side scores.
type Map struct {
	Name   string    `json:"name"`
	Mode   string    `json:"mode"`
	Phase  string    `json:"phase"`
	Round  int       `json:"round"`
	TeamCT TeamScore `json:"team_ct"`
	TeamT  TeamScore `json:"team_t"`
}

// TeamScore is one side's scoreboard entry.
type TeamScore struct {
	Score int `json:"score"`
}

// Round is the current round's phase block.
type Round struct {
	Phase   string `json:"phase"`
	WinTeam string `json:"win_team"`
}

// Player is a per-player block. The top-level Player of a snapshot is the
// client's notion of "the" player and may in fact describe a teammate being
// spectated; it must never be trusted without an identity check.
type Player struct {
	SteamID    string             `json:"steamid"`
	Name       string             `json:"name"`
	Team       string             `json:"team"`
	Activity   string             `json:"activity"`
	State      *PlayerState       `json:"state"`
	MatchStats *MatchStats        `json:"match_stats"`
	Weapons    map[string]*Weapon `json:"weapons"`
}

// PlayerState is the live scoreboard block. Counter fields are pointers:
// absent means not reported, not zero.
type PlayerState struct {
	Health     *int `json:"health"`
	Armor      *int `json:"armor"`
	Money      *int `json:"money"`
	RoundKills *int `json:"round_kills"`
	Kills      *int `json:"kills"`
	Deaths     *int `json:"deaths"`
	Assists    *int `json:"assists"`
	MVPs       *int `json:"mvps"`
	Score      *int `json:"score"`
}

// MatchStats is the cumulative match-totals block.
type MatchStats struct {
	Kills   *int `json:"kills"`
	Assists *int `json:"assists"`
	Deaths  *int `json:"deaths"`
	MVPs    *int `json:"mvps"`
	Score   *int `json:"score"`
}

// Weapon is one slot of a player's weapon list.
type Weapon struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	State string `json:"state"`
}

// Counters is the cumulative counter quadruple tracked per player.
type Counters struct {
	Kills   int64 `json:"kills"`
	Deaths  int64 `json:"deaths"`
	Assists int64 `json:"assists"`
	MVPs    int64 `json:"mvps"`
}
