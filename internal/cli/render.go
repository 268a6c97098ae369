package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type renderOpts struct {
	output string // output file; stdout when empty
	format string // json, dot or svg
	steps  int    // maximum ticks per snapshot
}

func newRenderCmd() *cobra.Command {
	opts := renderOpts{
		format: "svg",
		steps:  settleSteps,
	}

	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Lay out recorded snapshots and export the result",
		Long: `Render applies every snapshot in a JSON or YAML file, settles the layout,
and writes the final positions as SVG, Graphviz DOT or JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			frame, err := layoutFile(ctx, configFromContext(ctx), args[0], opts.steps)
			if err != nil {
				return err
			}

			if opts.output == "" {
				return writeFrame(cmd.OutOrStdout(), frame, opts.format)
			}

			f, err := os.Create(opts.output)
			if err != nil {
				return fmt.Errorf("create %s: %w", opts.output, err)
			}
			defer f.Close()

			w := bufio.NewWriter(f)
			if err := writeFrame(w, frame, opts.format); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			loggerFromContext(ctx).Info("wrote", "path", opts.output, "format", opts.format)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: svg, dot, json")
	cmd.Flags().IntVar(&opts.steps, "steps", opts.steps, "maximum ticks per snapshot")
	return cmd
}
