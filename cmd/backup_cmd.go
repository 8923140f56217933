package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ybenkhadda/dockback/internal/backup"
	"github.com/ybenkhadda/dockback/internal/compose"
	"github.com/ybenkhadda/dockback/internal/config"
	"github.com/ybenkhadda/dockback/internal/logger"
	"github.com/ybenkhadda/dockback/internal/snapshot"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run one full backup pass over all config directories",
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

		copier := snapshot.NewDirCopier(log)
		coord := compose.New(cfg.Docker.ProjectsDir, log)
		runner := backup.NewRunner(cfg, copier, coord, log)

		summary, err := runner.Run()
		if err != nil {
			return err
		}
		report(log, summary)

		_, _, failed := summary.Counts()
		if failed > 0 || summary.ArchiveErr != nil {
			os.Exit(1)
		}
		return nil
	},
}

// report renders the end-of-run block the log file is grepped for.
func report(log logger.Logger, summary *backup.Summary) {
	succeeded, recovered, failed := summary.Counts()
	log.Info("backup run finished",
		"succeeded", succeeded,
		"recovered", recovered,
		"failed", failed,
	)
	for _, item := range summary.Items {
		if item.Outcome == backup.Failed {
			log.Error("directory not backed up",
				"entry", item.Entry.Name,
				"error", item.Err.Error(),
			)
		}
	}
	if summary.ArchivePath != "" {
		log.Info("archive", "path", summary.ArchivePath)
	}
	if summary.ArchiveErr != nil {
		log.Error("archive failed", "error", summary.ArchiveErr.Error())
	}
	if len(summary.RotationDeleted) > 0 {
		log.Info("rotation deleted old archives", "names", summary.RotationDeleted)
	}
	if summary.RotationErr != nil {
		log.Error("rotation errors", "error", summary.RotationErr.Error())
	}
}
