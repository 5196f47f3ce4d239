package processor

import (
	"context"
	"testing"

	"tickd/internal/pipeline"
	"tickd/internal/rules"
)

func newTestProcessor() (*TickProcessor, *pipeline.MemoryStore) {
	store := pipeline.NewMemoryStore()
	pipe := pipeline.New(store, rules.Default(), 100)
	return NewTickProcessor(context.Background(), pipe), store
}

func TestHandleDropsMalformedPayload(t *testing.T) {
	p, _ := newTestProcessor()
	if err := p.Handle([]byte(`{not json`)); err != nil {
		t.Fatalf("malformed payloads must be dropped, not retried: %v", err)
	}
}

func TestHandleDropsMissingSteamID(t *testing.T) {
	p, _ := newTestProcessor()
	if err := p.Handle([]byte(`{"snapshot":{}}`)); err != nil {
		t.Fatalf("jobs without steam_id must be dropped, not retried: %v", err)
	}
}

func TestHandleDropsUndecodableSnapshot(t *testing.T) {
	p, _ := newTestProcessor()
	if err := p.Handle([]byte(`{"steam_id":"76561198000000001","snapshot":[1,2]}`)); err != nil {
		t.Fatalf("undecodable snapshots must be dropped, not retried: %v", err)
	}
}

func TestHandleAppliesValidJob(t *testing.T) {
	p, store := newTestProcessor()

	payload := []byte(`{
		"steam_id": "76561198000000001",
		"snapshot": {
			"provider": {"steamid": "76561198000000001", "timestamp": 1000},
			"map": {"name": "de_mirage", "mode": "competitive", "phase": "live", "round": 2,
				"team_ct": {"score": 1}, "team_t": {"score": 1}},
			"player": {"steamid": "76561198000000001", "team": "CT",
				"match_stats": {"kills": 2, "deaths": 1, "assists": 0, "mvps": 1}}
		}
	}`)
	if err := p.Handle(payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	sess, err := store.Session(context.Background(), "76561198000000001")
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if sess.MatchStartedAt != 1000 {
		t.Fatalf("expected a match to start at provider ts 1000, got %d", sess.MatchStartedAt)
	}
	if sess.Kills != 2 {
		t.Fatalf("expected session kills 2, got %d", sess.Kills)
	}

	st, err := store.PlayerStats(context.Background(), "76561198000000001")
	if err != nil {
		t.Fatalf("PlayerStats: %v", err)
	}
	if st.TotalKills != 2 || st.TotalDeaths != 1 || st.TotalMVPs != 1 {
		t.Fatalf("lifetime totals wrong: %+v", st)
	}
}
