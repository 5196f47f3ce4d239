package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"tickd/internal/config"
	"tickd/internal/db"
	"tickd/internal/pipeline"
	"tickd/internal/rules"
)

var recomputeSteamID string

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild a player's match summary from deduplicated history",
	Long: `Recompute reads the player's full match history, collapses near-duplicate
records, persists the corrected match totals and prints the surviving records.`,
	Args: cobra.NoArgs,
	RunE: runRecompute,
}

func init() {
	recomputeCmd.Flags().StringVar(&recomputeSteamID, "steamid", "", "subject player's steam id")
	_ = recomputeCmd.MarkFlagRequired("steamid")
}

func runRecompute(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	policy, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return fmt.Errorf("rules load failed: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("db connection failed: %w", err)
	}
	defer pool.Close()

	store := db.NewStore(pool)
	pipe := pipeline.New(store, policy, cfg.HistoryScanLimit)

	totals, kept, err := pipe.Recompute(ctx, recomputeSteamID)
	if err != nil {
		return fmt.Errorf("recompute failed: %w", err)
	}

	fmt.Fprintf(os.Stdout, "\nRecomputed from match history for %s\n\n", recomputeSteamID)
	fmt.Fprintf(os.Stdout, "  Matches : %d\n", totals.Matches)
	fmt.Fprintf(os.Stdout, "  Wins    : %d\n", totals.Wins)
	fmt.Fprintf(os.Stdout, "  Kills   : %d\n", totals.Kills)
	fmt.Fprintf(os.Stdout, "  Deaths  : %d\n", totals.Deaths)
	fmt.Fprintf(os.Stdout, "  Win%%    : %.1f\n", totals.WinRate*100)

	// The lifetime counters stay tick-sourced; only the match summary fields
	// were overwritten by the recomputation. Show both so drift is visible.
	lifetime, err := store.PlayerStats(ctx, recomputeSteamID)
	if err != nil {
		return fmt.Errorf("read lifetime totals: %w", err)
	}
	fmt.Fprintf(os.Stdout, "\nLifetime totals (tick-sourced counters, healed summary)\n\n")
	fmt.Fprintf(os.Stdout, "  Matches : %d\n", lifetime.TotalMatches)
	fmt.Fprintf(os.Stdout, "  Wins    : %d\n", lifetime.TotalWins)
	fmt.Fprintf(os.Stdout, "  Kills   : %d\n", lifetime.TotalKills)
	fmt.Fprintf(os.Stdout, "  Deaths  : %d\n", lifetime.TotalDeaths)
	fmt.Fprintf(os.Stdout, "  Assists : %d\n", lifetime.TotalAssists)
	fmt.Fprintf(os.Stdout, "  MVPs    : %d\n", lifetime.TotalMVPs)
	fmt.Fprintf(os.Stdout, "  K/D     : %.2f\n", lifetime.KDRatio)
	fmt.Fprintf(os.Stdout, "  Win%%    : %.1f\n", lifetime.WinRate*100)

	if len(kept) == 0 {
		fmt.Fprintln(os.Stdout, "\n(no valid matches)")
		return nil
	}

	fmt.Fprintf(os.Stdout, "\n--- Deduplicated matches ---\n\n")
	table := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
	table.Header("PLAYED", "MAP", "MODE", "RESULT", "SCORE", "K", "D", "A", "MVP")
	for _, m := range kept {
		table.Append(
			m.CreatedAt.Format(time.DateTime),
			m.MapName,
			m.InferredMode,
			m.Result,
			fmt.Sprintf("%d-%d", m.Score, m.OpponentScore),
			fmt.Sprintf("%d", m.Kills),
			fmt.Sprintf("%d", m.Deaths),
			fmt.Sprintf("%d", m.Assists),
			fmt.Sprintf("%d", m.MVPs),
		)
	}
	table.Render()
	return nil
}
