package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"fabricviz/internal/app"
	"fabricviz/internal/codec"
	"fabricviz/internal/config"
	"fabricviz/internal/domain"
)

// layoutFile decodes every snapshot in path, applies them in order and runs
// the layout until it cools. Each snapshot gets its own settle pass so warm
// starts behave as they would live.
func layoutFile(ctx context.Context, cfg *config.Config, path string, steps int) (*domain.Frame, error) {
	logger := loggerFromContext(ctx)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	snaps, err := codec.DecoderForPath(path).Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%s: no snapshots", path)
	}

	rt := app.New(layoutConfig(cfg.Layout),
		app.WithCoalescing(cfg.Layout.Coalescing()),
		app.WithLogger(logger),
	)

	var frame *domain.Frame
	for i, snap := range snaps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d := rt.Apply(snap)
		frame = rt.Settle(steps)
		logger.Debug("snapshot applied",
			"index", i,
			"changed", d.Changed(),
			"tick", frame.Tick,
			"alpha", frame.Alpha,
		)
	}

	routers, links := rt.Store().Len()
	logger.Info("layout settled", "snapshots", len(snaps), "routers", routers, "links", links, "tick", frame.Tick)
	return frame, nil
}

func newReplayCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Replay recorded snapshots and print the settled frame as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, err := layoutFile(cmd.Context(), configFromContext(cmd.Context()), args[0], steps)
			if err != nil {
				return err
			}
			return writeFrame(cmd.OutOrStdout(), frame, "json")
		},
	}

	cmd.Flags().IntVar(&steps, "steps", settleSteps, "maximum ticks per snapshot")
	return cmd
}

func writeFrame(w io.Writer, frame *domain.Frame, format string) error {
	exp, err := codec.ExporterFor(format)
	if err != nil {
		return err
	}
	return exp.Export(frame, w)
}
