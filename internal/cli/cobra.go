package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/keflavich/frocc/internal/assemble"
	"github.com/keflavich/frocc/internal/config"
	"github.com/keflavich/frocc/internal/storage"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store) *cobra.Command {
	root := NewRoot(cfg, log, store)

	rootCmd := &cobra.Command{
		Use:   "frocc",
		Short: "frocc assembles spectro-polarimetric image cubes",
		Long: `frocc builds a single 4D image cube (x, y, frequency channel, Stokes)
out of many per-channel images, gating each channel on its Stokes-V noise.
The cube can exceed the machine's RAM; channels are copied slab by slab.`,
	}

	rootCmd.AddCommand(newBuildCmd(root))
	rootCmd.AddCommand(newRunsCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newBuildCmd(root *Root) *cobra.Command {
	var (
		output      string
		stats       string
		pattern     string
		marker      string
		object      string
		workers     int
		wait        int
		waitTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "build [images_directory]",
		Short: "Assemble the cube from per-channel images",
		Long: `Discover the per-channel images, allocate the full-size cube file and
copy every accepted channel's four polarization planes into it. Channels whose
Stokes-V noise fails the gate, and channels whose image is missing or broken,
are blanked with NaN. A tab-separated statistics table is written alongside.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := root.cfg.Images.Dir
			if len(args) > 0 {
				dir = args[0]
			}
			if workers == 0 {
				workers = root.cfg.Processing.Workers
			}

			ctx := cmd.Context()
			if wait > 0 {
				timeout := waitTimeout
				if timeout == 0 {
					timeout = time.Duration(root.cfg.Processing.WaitTimeoutSecs) * time.Second
				}
				err := assemble.WaitForChannels(ctx, root.log, dir,
					pick(pattern, root.cfg.Images.Pattern), wait, timeout)
				if err != nil {
					return err
				}
			}

			asm := assemble.New(assemble.Options{
				ImagesDir:      dir,
				Pattern:        pick(pattern, root.cfg.Images.Pattern),
				Marker:         pick(marker, root.cfg.Images.ChannelMarker),
				CubePath:       pick(output, root.cfg.Cube.OutputPath),
				StatisticsPath: pick(stats, root.cfg.Cube.StatisticsPath),
				ObjectName:     pick(object, root.cfg.Cube.ObjectName),
				Workers:        workers,
			}, root.log, root.store)

			sum, err := asm.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Cube assembled: %s\n", sum.CubePath)
			fmt.Printf("  run:        %s\n", sum.RunID)
			fmt.Printf("  shape:      %d x %d x %d x %d\n",
				sum.Geometry.XDim, sum.Geometry.YDim, sum.Geometry.ChannelDim, sum.Geometry.StokesDim)
			fmt.Printf("  size:       %d bytes\n", sum.Geometry.TotalFileSize)
			fmt.Printf("  channels:   %d (%d flagged)\n", sum.Channels, sum.Flagged)
			fmt.Printf("  statistics: %s\n", sum.StatisticsPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "cube file path (default cube.<field>.fits)")
	cmd.Flags().StringVar(&stats, "stats", "", "statistics table path")
	cmd.Flags().StringVar(&pattern, "pattern", "", "glob for channel image filenames")
	cmd.Flags().StringVar(&marker, "marker", "", "substring preceding the channel number in filenames")
	cmd.Flags().StringVar(&object, "object", "", "OBJECT card for the cube header")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel channel workers")
	cmd.Flags().IntVar(&wait, "wait", 0, "wait until this many channel images exist before building")
	cmd.Flags().DurationVar(&waitTimeout, "wait-timeout", 0, "cap on waiting for channel images (0: no cap)")

	return cmd
}

func newRunsCmd(root *Root) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run_id]",
		Short: "List past assembly runs or show one run's channel table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return root.showRun(args[0])
			}
			return root.listRuns(limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list")

	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the frocc version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("frocc %s\n", Version)
		},
	}
}
