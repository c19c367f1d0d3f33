package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set via -ldflags at build time, matching the teacher's
// version-stamping convention.
var Version = "dev"

var (
	configPath string
	verbose    bool
)

// NewRootCmd assembles the xearthlayer command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "xearthlayer",
		Short:         "FUSE-backed on-demand orthophoto texture server for X-Plane",
		Long:          "xearthlayer mounts a read-only POSIX tree of DDS orthophoto textures, synthesising each one on first access from a tiled imagery provider and caching the result.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("xearthlayer %s\n", Version))

	pflags := root.PersistentFlags()
	pflags.StringVarP(&configPath, "config", "c", "xearthlayer.toml", "Path to xearthlayer.toml")
	pflags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	addServeCommand(root)
	addPrewarmCommand(root)
	addDoctorCommand(root)

	return root
}

// Execute runs the command tree and returns any error for main to turn
// into an exit code.
func Execute() error {
	return NewRootCmd().Execute()
}
