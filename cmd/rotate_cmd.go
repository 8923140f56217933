package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ybenkhadda/dockback/internal/archive"
	"github.com/ybenkhadda/dockback/internal/config"
	"github.com/ybenkhadda/dockback/internal/logger"
)

var rotateCmd = &cobra.Command{
	Use:   "rotate",
	Short: "Prune old archives beyond the retention count",
	RunE: func(cmd *cobra.Command, args []string) error {
		var cfg config.Config
		if err := cfg.Load(ConfigFile); err != nil {
			return err
		}
		log, err := logger.Init(cfg.Log.File)
		if err != nil {
			return err
		}
		defer logger.Cleanup()

		deleted, err := archive.New(log).Rotate(cfg.Backup.ArchiveDir, cfg.Retention.KeepLast)
		log.Info("rotation finished", "deleted", len(deleted))
		return err
	},
}
