package pipeline

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and dry runs. It applies
// the same optimistic-versioning rules as the durable implementation.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]SessionState
	stats    map[string]PlayerStats
	weapons  map[string]int64 // steamID|weapon -> kills
	maps     map[string]MapStatsEntry
	matches  []MatchRecord
	seq      int64

	now func() time.Time
}

// MapStatsEntry is the per-player, per-map aggregate kept by MemoryStore.
type MapStatsEntry struct {
	Matches int64
	Wins    int64
	Losses  int64
	Kills   int64
	Deaths  int64
	Rounds  int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]SessionState),
		stats:    make(map[string]PlayerStats),
		weapons:  make(map[string]int64),
		maps:     make(map[string]MapStatsEntry),
		now:      time.Now,
	}
}

// SetClock overrides the clock used for created-at stamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *MemoryStore) Session(ctx context.Context, steamID string) (*SessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[steamID]; ok {
		cp := s
		if s.LastStats != nil {
			st := *s.LastStats
			cp.LastStats = &st
		}
		return &cp, nil
	}
	return &SessionState{SteamID: steamID}, nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, s *SessionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, exists := m.sessions[s.SteamID]
	switch {
	case !exists && s.Version != 0:
		return ErrSessionConflict
	case exists && stored.Version != s.Version:
		return ErrSessionConflict
	}
	s.Version++
	cp := *s
	if s.LastStats != nil {
		st := *s.LastStats
		cp.LastStats = &st
	}
	m.sessions[s.SteamID] = cp
	return nil
}

func (m *MemoryStore) AddPlayerTotals(ctx context.Context, steamID string, d TotalsDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats[steamID]
	st.SteamID = steamID
	st.TotalKills += d.Kills
	st.TotalDeaths += d.Deaths
	st.TotalAssists += d.Assists
	st.TotalMVPs += d.MVPs
	st.TotalMatches += d.Matches
	st.TotalWins += d.Wins
	st.KDRatio = ratio(st.TotalKills, st.TotalDeaths)
	st.WinRate = ratio(st.TotalWins, st.TotalMatches)
	st.UpdatedAt = m.now()
	m.stats[steamID] = st
	return nil
}

func (m *MemoryStore) AddWeaponKills(ctx context.Context, steamID, weapon string, kills int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.weapons[steamID+"|"+weapon] += kills
	return nil
}

func (m *MemoryStore) AddMapStats(ctx context.Context, steamID, mapName string, d MapDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := steamID + "|" + mapName
	e := m.maps[key]
	e.Matches += d.Matches
	e.Wins += d.Wins
	e.Losses += d.Losses
	e.Kills += d.Kills
	e.Deaths += d.Deaths
	e.Rounds += d.Rounds
	m.maps[key] = e
	return nil
}

func (m *MemoryStore) CreateMatch(ctx context.Context, rec *MatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	cp := *rec
	if cp.ID == "" {
		cp.ID = "mem-" + strconv.FormatInt(m.seq, 10)
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.now()
	}
	*rec = cp
	m.matches = append(m.matches, cp)
	return nil
}

func (m *MemoryStore) RecentMatches(ctx context.Context, steamID string, limit int) ([]MatchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MatchRecord
	for _, r := range m.matches {
		if r.SteamID == steamID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) SetMatchTotals(ctx context.Context, steamID string, t MatchTotals) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats[steamID]
	st.SteamID = steamID
	st.TotalMatches = t.Matches
	st.TotalWins = t.Wins
	st.WinRate = t.WinRate
	st.UpdatedAt = m.now()
	m.stats[steamID] = st
	return nil
}

func (m *MemoryStore) PlayerStats(ctx context.Context, steamID string) (*PlayerStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.stats[steamID]; ok {
		cp := st
		return &cp, nil
	}
	return &PlayerStats{SteamID: steamID}, nil
}

// WeaponKills reads one weapon counter, for assertions.
func (m *MemoryStore) WeaponKills(steamID, weapon string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.weapons[steamID+"|"+weapon]
}

// MapStats reads one map aggregate, for assertions.
func (m *MemoryStore) MapStats(steamID, mapName string) MapStatsEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maps[steamID+"|"+mapName]
}

// MatchCount reports how many match records exist for a player.
func (m *MemoryStore) MatchCount(steamID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.matches {
		if r.SteamID == steamID {
			n++
		}
	}
	return n
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return float64(num)
	}
	return float64(num) / float64(den)
}

var _ Store = (*MemoryStore)(nil)
