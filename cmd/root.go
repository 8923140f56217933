package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ConfigFile is the path to the YAML configuration.
var (
	ConfigFile string
	// rootCmd is the base command for dockback.
	rootCmd = &cobra.Command{
		Use:   "dockback",
		Short: "Scheduled backups of docker config directories",
		Long: `dockback snapshots each docker config directory into a staging area,
recovering from file-lock contention by stopping and restarting the owning
compose project, then packages the result into a single dated zip archive
and prunes old archives.`,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().
		StringVarP(&ConfigFile, "config", "c", "./configs/config.yaml", "path to YAML config file")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(rotateCmd)
}
