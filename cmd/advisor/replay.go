package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/sawpanic/advisoryengine/internal/engine"
	"github.com/sawpanic/advisoryengine/internal/normalize"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

var (
	replayThresholdsPath string
	replayFixturePath    string
	replayPercentFormat  string
	replayPacing         time.Duration
)

// replayCmd drives a fixture of ticks through the engine one at a time,
// printing each tick's DualTimeframeResult as JSON (spec §2.B).
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a fixture of ticks through the advisory engine",
	Long: `Replay reads a YAML fixture of per-symbol ticks, feeds each one
through the advisory engine in order, and prints the resulting
DualTimeframeResult as one JSON object per line.`,
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayThresholdsPath, "thresholds", "", "path to the threshold YAML document (required)")
	replayCmd.Flags().StringVar(&replayFixturePath, "fixture", "", "path to the tick fixture YAML document (required)")
	replayCmd.Flags().StringVar(&replayPercentFormat, "percentage-format", "decimal", "percentage_format stamped on every tick: decimal or percent_point")
	replayCmd.Flags().DurationVar(&replayPacing, "pace", 0, "minimum wall-clock delay between ticks (0 disables pacing)")
	_ = replayCmd.MarkFlagRequired("thresholds")
	_ = replayCmd.MarkFlagRequired("fixture")

	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	th, err := thresholds.Compile(replayThresholdsPath)
	if err != nil {
		return fmt.Errorf("compile thresholds: %w", err)
	}

	ticks, err := loadFixture(replayFixturePath)
	if err != nil {
		return err
	}

	// Every replayed tick is stamped with the --percentage-format value
	// (see rawSnapshot), so the engine-wide policy only applies when that
	// flag is set to an empty string; WARN is the safer default.
	var opts []engine.Option
	if replayPacing > 0 {
		opts = append(opts, engine.WithIngestionLimiter(rate.NewLimiter(rate.Every(replayPacing), 1)))
	}
	eng := engine.New(th, normalize.PolicyWarn, opts...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "")

	for _, tick := range ticks {
		traceID := uuid.New().String()[:8]
		raw := rawSnapshot(tick, replayPercentFormat)

		result := eng.OnNewTickDual(ctx, tick.Symbol, raw, tick.Timestamp)

		log.Info().
			Str("trace_id", traceID).
			Str("symbol", tick.Symbol).
			Time("timestamp", tick.Timestamp).
			Str("short_term", result.ShortTerm.Decision.String()).
			Str("medium_term", result.MediumTerm.Decision.String()).
			Msg("tick evaluated")

		if err := encoder.Encode(result); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}

	return nil
}
