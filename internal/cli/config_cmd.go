package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow()
		},
	})
	return cmd
}

func (r *Root) configShow() error {
	fmt.Printf("Current configuration:\n")
	cfgPath := os.Getenv("FROCC_CONFIG")
	if cfgPath == "" {
		cfgPath = "(default) ~/.config/frocc/config.json"
	}
	fmt.Printf("Config file: %s\n", cfgPath)
	fmt.Printf("\nImages:\n")
	fmt.Printf("  Directory: %s\n", r.cfg.Images.Dir)
	fmt.Printf("  Pattern: %s\n", r.cfg.Images.Pattern)
	fmt.Printf("  Channel marker: %s\n", r.cfg.Images.ChannelMarker)
	fmt.Printf("\nCube:\n")
	fmt.Printf("  Output path: %s\n", orDerived(r.cfg.Cube.OutputPath))
	fmt.Printf("  Statistics path: %s\n", r.cfg.Cube.StatisticsPath)
	fmt.Printf("  Object name: %s\n", r.cfg.Cube.ObjectName)
	fmt.Printf("\nProcessing:\n")
	fmt.Printf("  Workers: %d\n", r.cfg.Processing.Workers)
	fmt.Printf("  Wait timeout: %ds\n", r.cfg.Processing.WaitTimeoutSecs)
	fmt.Printf("\nPaths:\n")
	fmt.Printf("  Run database: %s\n", r.cfg.Paths.DatabasePath)
	return nil
}

func orDerived(path string) string {
	if path == "" {
		return "(derived from lowest channel image)"
	}
	return path
}
