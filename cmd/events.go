/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/imagehoster/server/internal/db"
	"github.com/imagehoster/server/internal/mq"
	"github.com/imagehoster/server/internal/services"
	"github.com/imagehoster/server/internal/storage"
	"github.com/imagehoster/server/internal/store"
)

// eventsCmd consumes image events. With object storage configured it
// mirrors every change into the backup bucket.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Consume image events",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queue, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return errors.New("MQ_BACKEND is not set")
		}
		defer queue.Close()

		handler, cleanup, err := eventHandler(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		log.Info().Str("channel", cfg.MQ.Channel).Msg("Consuming image events")
		err = queue.Subscribe(ctx, cfg.MQ.Channel, handler)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func eventHandler(ctx context.Context) (mq.Handler, func(), error) {
	logEvent := func(ctx context.Context, msg mq.Message) error {
		event, err := mq.DecodeImageEvent(msg)
		if err != nil {
			log.Warn().Err(err).Str("message_id", msg.ID).Msg("Undecodable image event")
			return nil
		}
		log.Info().
			Str("event_type", event.Type).
			Str("title", event.Title).
			Str("username", event.Username).
			Time("at", event.At).
			Msg("Image event")
		return nil
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	if objects == nil {
		return logEvent, func() {}, nil
	}

	sqlDB, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := store.NewGorm(sqlDB, db.Driver(cfg.Database))
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	backuper := storage.NewBackuper(services.NewImageService(store.NewImageRepository(gormDB)), objects)

	handler := func(ctx context.Context, msg mq.Message) error {
		_ = logEvent(ctx, msg)
		return backuper.HandleEvent(ctx, msg)
	}
	return handler, func() { _ = sqlDB.Close() }, nil
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
