package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickd/internal/gsi"
	"tickd/internal/pipeline"
)

//go:embed schema.sql
var schemaSQL string

// Store is the Postgres-backed implementation of pipeline.Store. Every
// mutation is a single atomic statement against one row, so concurrent ticks
// for the same player cannot interleave partial updates.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps a connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Session(ctx context.Context, steamID string) (*pipeline.SessionState, error) {
	sess := &pipeline.SessionState{SteamID: steamID}
	var lastStats []byte
	err := s.pool.QueryRow(ctx, `
		SELECT kills, deaths, assists, mvps, attributed_kills,
		       last_active_weapon, last_round, match_started_at,
		       last_saved_match_key, last_team, last_stats,
		       last_provider_ts, current_map, last_seen_at, version
		FROM sessions
		WHERE steam_id = $1
	`, steamID).Scan(
		&sess.Kills, &sess.Deaths, &sess.Assists, &sess.MVPs, &sess.AttributedKills,
		&sess.LastActiveWeapon, &sess.LastRound, &sess.MatchStartedAt,
		&sess.LastSavedMatchKey, &sess.LastTeam, &lastStats,
		&sess.LastProviderTS, &sess.CurrentMap, &sess.LastSeenAt, &sess.Version,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(lastStats) > 0 {
		var c gsi.Counters
		if err := json.Unmarshal(lastStats, &c); err != nil {
			return nil, fmt.Errorf("decode session snapshot: %w", err)
		}
		sess.LastStats = &c
	}
	return sess, nil
}

func (s *Store) SaveSession(ctx context.Context, sess *pipeline.SessionState) error {
	var lastStats []byte
	if sess.LastStats != nil {
		raw, err := json.Marshal(sess.LastStats)
		if err != nil {
			return fmt.Errorf("encode session snapshot: %w", err)
		}
		lastStats = raw
	}

	if sess.Version == 0 {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO sessions (
				steam_id, kills, deaths, assists, mvps, attributed_kills,
				last_active_weapon, last_round, match_started_at,
				last_saved_match_key, last_team, last_stats,
				last_provider_ts, current_map, last_seen_at, version
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,1)
			ON CONFLICT (steam_id) DO NOTHING
		`, sess.SteamID, sess.Kills, sess.Deaths, sess.Assists, sess.MVPs, sess.AttributedKills,
			sess.LastActiveWeapon, sess.LastRound, sess.MatchStartedAt,
			sess.LastSavedMatchKey, sess.LastTeam, lastStats,
			sess.LastProviderTS, sess.CurrentMap, sess.LastSeenAt)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return pipeline.ErrSessionConflict
		}
		sess.Version = 1
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET
			kills = $2, deaths = $3, assists = $4, mvps = $5,
			attributed_kills = $6, last_active_weapon = $7, last_round = $8,
			match_started_at = $9, last_saved_match_key = $10, last_team = $11,
			last_stats = $12, last_provider_ts = $13, current_map = $14,
			last_seen_at = $15, version = version + 1, updated_at = now()
		WHERE steam_id = $1 AND version = $16
	`, sess.SteamID, sess.Kills, sess.Deaths, sess.Assists, sess.MVPs,
		sess.AttributedKills, sess.LastActiveWeapon, sess.LastRound,
		sess.MatchStartedAt, sess.LastSavedMatchKey, sess.LastTeam,
		lastStats, sess.LastProviderTS, sess.CurrentMap,
		sess.LastSeenAt, sess.Version)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrSessionConflict
	}
	sess.Version++
	return nil
}

func (s *Store) AddPlayerTotals(ctx context.Context, steamID string, d pipeline.TotalsDelta) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_stats (
			steam_id, total_kills, total_deaths, total_assists, total_mvps,
			total_matches, total_wins, kd_ratio, win_rate, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
			CASE WHEN $3 > 0 THEN $2::double precision / $3 ELSE $2::double precision END,
			CASE WHEN $6 > 0 THEN $7::double precision / $6 ELSE 0 END,
			now())
		ON CONFLICT (steam_id) DO UPDATE SET
			total_kills   = player_stats.total_kills + EXCLUDED.total_kills,
			total_deaths  = player_stats.total_deaths + EXCLUDED.total_deaths,
			total_assists = player_stats.total_assists + EXCLUDED.total_assists,
			total_mvps    = player_stats.total_mvps + EXCLUDED.total_mvps,
			total_matches = player_stats.total_matches + EXCLUDED.total_matches,
			total_wins    = player_stats.total_wins + EXCLUDED.total_wins,
			kd_ratio = CASE
				WHEN player_stats.total_deaths + EXCLUDED.total_deaths > 0
				THEN (player_stats.total_kills + EXCLUDED.total_kills)::double precision
					/ (player_stats.total_deaths + EXCLUDED.total_deaths)
				ELSE (player_stats.total_kills + EXCLUDED.total_kills)::double precision
			END,
			win_rate = CASE
				WHEN player_stats.total_matches + EXCLUDED.total_matches > 0
				THEN (player_stats.total_wins + EXCLUDED.total_wins)::double precision
					/ (player_stats.total_matches + EXCLUDED.total_matches)
				ELSE 0
			END,
			updated_at = now()
	`, steamID, d.Kills, d.Deaths, d.Assists, d.MVPs, d.Matches, d.Wins)
	if err != nil {
		return fmt.Errorf("increment player stats: %w", err)
	}
	return nil
}

func (s *Store) AddWeaponKills(ctx context.Context, steamID, weapon string, kills int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO weapon_stats (steam_id, weapon, kills)
		VALUES ($1, $2, $3)
		ON CONFLICT (steam_id, weapon) DO UPDATE SET
			kills = weapon_stats.kills + EXCLUDED.kills
	`, steamID, weapon, kills)
	if err != nil {
		return fmt.Errorf("increment weapon stats: %w", err)
	}
	return nil
}

func (s *Store) AddMapStats(ctx context.Context, steamID, mapName string, d pipeline.MapDelta) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO map_stats (
			steam_id, map_name, total_matches, wins, losses,
			total_kills, total_deaths, total_rounds
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (steam_id, map_name) DO UPDATE SET
			total_matches = map_stats.total_matches + EXCLUDED.total_matches,
			wins          = map_stats.wins + EXCLUDED.wins,
			losses        = map_stats.losses + EXCLUDED.losses,
			total_kills   = map_stats.total_kills + EXCLUDED.total_kills,
			total_deaths  = map_stats.total_deaths + EXCLUDED.total_deaths,
			total_rounds  = map_stats.total_rounds + EXCLUDED.total_rounds
	`, steamID, mapName, d.Matches, d.Wins, d.Losses, d.Kills, d.Deaths, d.Rounds)
	if err != nil {
		return fmt.Errorf("increment map stats: %w", err)
	}
	return nil
}

func (s *Store) CreateMatch(ctx context.Context, rec *pipeline.MatchRecord) error {
	id := uuid.New()
	err := s.pool.QueryRow(ctx, `
		INSERT INTO match_records (
			id, steam_id, map_name, mode, inferred_mode, result, result_reason,
			kills, deaths, assists, mvps, score, opponent_score, duration_sec
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at
	`, id, rec.SteamID, rec.MapName, rec.Mode, rec.InferredMode, rec.Result, rec.ResultReason,
		rec.Kills, rec.Deaths, rec.Assists, rec.MVPs, rec.Score, rec.OpponentScore, rec.DurationSec,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert match record: %w", err)
	}
	rec.ID = id.String()
	return nil
}

func (s *Store) RecentMatches(ctx context.Context, steamID string, limit int) ([]pipeline.MatchRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, steam_id, map_name, mode, inferred_mode, result, result_reason,
		       kills, deaths, assists, mvps, score, opponent_score, duration_sec, created_at
		FROM match_records
		WHERE steam_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, steamID, limit)
	if err != nil {
		return nil, fmt.Errorf("query match records: %w", err)
	}
	defer rows.Close()

	var out []pipeline.MatchRecord
	for rows.Next() {
		var rec pipeline.MatchRecord
		var id uuid.UUID
		if err := rows.Scan(&id, &rec.SteamID, &rec.MapName, &rec.Mode, &rec.InferredMode,
			&rec.Result, &rec.ResultReason, &rec.Kills, &rec.Deaths, &rec.Assists, &rec.MVPs,
			&rec.Score, &rec.OpponentScore, &rec.DurationSec, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match record: %w", err)
		}
		rec.ID = id.String()
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) SetMatchTotals(ctx context.Context, steamID string, t pipeline.MatchTotals) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_stats (steam_id, total_matches, total_wins, win_rate, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (steam_id) DO UPDATE SET
			total_matches = EXCLUDED.total_matches,
			total_wins    = EXCLUDED.total_wins,
			win_rate      = EXCLUDED.win_rate,
			updated_at    = now()
	`, steamID, t.Matches, t.Wins, t.WinRate)
	if err != nil {
		return fmt.Errorf("set match totals: %w", err)
	}
	return nil
}

func (s *Store) PlayerStats(ctx context.Context, steamID string) (*pipeline.PlayerStats, error) {
	st := &pipeline.PlayerStats{SteamID: steamID}
	err := s.pool.QueryRow(ctx, `
		SELECT total_kills, total_deaths, total_assists, total_mvps,
		       total_matches, total_wins, kd_ratio, win_rate, updated_at
		FROM player_stats
		WHERE steam_id = $1
	`, steamID).Scan(
		&st.TotalKills, &st.TotalDeaths, &st.TotalAssists, &st.TotalMVPs,
		&st.TotalMatches, &st.TotalWins, &st.KDRatio, &st.WinRate, &st.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read player stats: %w", err)
	}
	return st, nil
}

var _ pipeline.Store = (*Store)(nil)
