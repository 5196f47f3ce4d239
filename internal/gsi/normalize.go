package gsi

import (
	"sort"
	"strings"
)

// Source says which snapshot block the subject's view was resolved from.
type Source int

const (
	SourceNone Source = iota
	SourceAllPlayers
	SourcePlayer
	SourceSession
)

// Fallback is the last verified view of the subject, supplied by the caller
// from durable session state. Used only when no block in the snapshot can be
// verified to belong to the subject.
type Fallback struct {
	Team  string
	Stats *Counters
}

// MapView is the normalized map block.
type MapView struct {
	Name    string
	Mode    string
	Phase   string
	Round   int
	CTScore int
	TScore  int
}

// MyView is the subject's resolved block.
type MyView struct {
	Source       Source
	Team         string
	Counters     *Counters // nil when no counter is determinable
	ActiveWeapon string    // raw weapon name, "" when none is marked active
}

// Tick is the canonical view of one snapshot for one subject.
type Tick struct {
	Subject      string
	Menu         bool
	ProviderTS   int64
	Map          *MapView
	RoundPhase   string
	RoundWinTeam string
	My           *MyView
}

// Normalize extracts the subject's canonical view from a raw snapshot.
//
// The subject's block is resolved with this precedence: an allplayers entry
// keyed by the subject's identity, then the top-level player block only if
// its steamid matches the subject, then the caller-supplied fallback. A
// top-level block whose identity does not match is treated as unavailable,
// never as data about the subject.
func Normalize(subject string, snap *Snapshot, fb Fallback) *Tick {
	t := &Tick{Subject: subject}
	if snap == nil {
		t.Menu = true
		return t
	}

	if snap.Provider != nil {
		t.ProviderTS = snap.Provider.Timestamp
	}
	if snap.Map != nil {
		t.Map = &MapView{
			Name:    snap.Map.Name,
			Mode:    strings.ToLower(snap.Map.Mode),
			Phase:   strings.ToLower(snap.Map.Phase),
			Round:   snap.Map.Round,
			CTScore: snap.Map.TeamCT.Score,
			TScore:  snap.Map.TeamT.Score,
		}
	}
	if snap.Round != nil {
		t.RoundPhase = strings.ToLower(snap.Round.Phase)
		t.RoundWinTeam = normalizeTeam(snap.Round.WinTeam)
	}

	if t.Map == nil {
		if snap.Player == nil || strings.EqualFold(snap.Player.Activity, "menu") {
			t.Menu = true
			return t
		}
	}

	var block *Player
	src := SourceNone
	if p, ok := snap.AllPlayers[subject]; ok && p != nil {
		block, src = p, SourceAllPlayers
	} else if snap.Player != nil && snap.Player.SteamID == subject {
		block, src = snap.Player, SourcePlayer
	}

	switch {
	case block != nil:
		t.My = &MyView{
			Source:       src,
			Team:         normalizeTeam(block.Team),
			Counters:     blockCounters(block),
			ActiveWeapon: activeWeapon(block),
		}
	case fb.Team != "" || fb.Stats != nil:
		my := &MyView{Source: SourceSession, Team: fb.Team}
		if fb.Stats != nil {
			c := *fb.Stats
			my.Counters = &c
		}
		t.My = my
	}

	return t
}

// blockCounters reads the cumulative counters from a player block, preferring
// the scoreboard state over the match-totals block. Returns nil when neither
// block reports any counter.
func blockCounters(p *Player) *Counters {
	if s := p.State; s != nil && (s.Kills != nil || s.Deaths != nil || s.Assists != nil || s.MVPs != nil) {
		return &Counters{
			Kills:   int64(deref(s.Kills)),
			Deaths:  int64(deref(s.Deaths)),
			Assists: int64(deref(s.Assists)),
			MVPs:    int64(deref(s.MVPs)),
		}
	}
	if m := p.MatchStats; m != nil && (m.Kills != nil || m.Deaths != nil || m.Assists != nil || m.MVPs != nil) {
		return &Counters{
			Kills:   int64(deref(m.Kills)),
			Deaths:  int64(deref(m.Deaths)),
			Assists: int64(deref(m.Assists)),
			MVPs:    int64(deref(m.MVPs)),
		}
	}
	return nil
}

// activeWeapon returns the raw name of the weapon marked active, scanning
// slots in key order so the result is deterministic.
func activeWeapon(p *Player) string {
	if len(p.Weapons) == 0 {
		return ""
	}
	slots := make([]string, 0, len(p.Weapons))
	for k := range p.Weapons {
		slots = append(slots, k)
	}
	sort.Strings(slots)
	for _, k := range slots {
		w := p.Weapons[k]
		if w != nil && strings.EqualFold(w.State, "active") && w.Name != "" {
			return w.Name
		}
	}
	return ""
}

func normalizeTeam(team string) string {
	switch strings.ToUpper(strings.TrimSpace(team)) {
	case "CT":
		return "CT"
	case "T":
		return "T"
	default:
		return ""
	}
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
