/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/imagehoster/server/internal/db"
	"github.com/imagehoster/server/internal/services"
	"github.com/imagehoster/server/internal/storage"
	"github.com/imagehoster/server/internal/store"
)

// backupCmd copies every image into the configured object storage once.
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy all images to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		if objects == nil {
			return errors.New("STORAGE_BACKEND is not set")
		}

		sqlDB, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer sqlDB.Close()

		gormDB, err := store.NewGorm(sqlDB, db.Driver(cfg.Database))
		if err != nil {
			return err
		}
		images := services.NewImageService(store.NewImageRepository(gormDB))

		written, err := storage.NewBackuper(images, objects).BackupAll(ctx)
		log.Info().Int("written", written).Str("bucket", objects.Bucket()).Msg("Backup finished")
		return err
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
