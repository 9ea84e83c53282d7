package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/imagehoster/server/internal/mq"
	"github.com/imagehoster/server/internal/store"
	"github.com/imagehoster/server/types"
)

// ImageSource is the read side of the image service used for backups.
type ImageSource interface {
	GetAll(ctx context.Context) ([]types.Image, error)
	GetByTitle(ctx context.Context, title string) (types.Image, error)
}

// Backuper copies decoded image content into object storage, one object
// per image keyed by title.
type Backuper struct {
	images  ImageSource
	objects ObjectStorage

	mu      sync.Mutex
	cron    *cron.Cron
	entryID cron.EntryID
}

func NewBackuper(images ImageSource, objects ObjectStorage) *Backuper {
	return &Backuper{
		images:  images,
		objects: objects,
		cron:    cron.New(),
	}
}

// ObjectKey returns the object key for an image title. Titles are unique,
// so keys are too.
func ObjectKey(title string) string {
	return "images/" + url.PathEscape(title)
}

// BackupImage stores one image. Images without content are skipped.
func (b *Backuper) BackupImage(ctx context.Context, image types.Image) error {
	if image.ImageData == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(image.ImageData)
	if err != nil {
		return fmt.Errorf("decode image %q: %w", image.Title, err)
	}
	contentType := http.DetectContentType(data)
	return b.objects.Put(ctx, ObjectKey(image.Title), bytes.NewReader(data), int64(len(data)), contentType)
}

// BackupAll stores every image and returns how many were written. A
// failing image does not stop the rest.
func (b *Backuper) BackupAll(ctx context.Context) (int, error) {
	images, err := b.images.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	var (
		written int
		errs    []error
	)
	for _, image := range images {
		if image.ImageData == "" {
			continue
		}
		if err := b.BackupImage(ctx, image); err != nil {
			log.Warn().Err(err).Str("title", image.Title).Msg("Failed to back up image")
			errs = append(errs, err)
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// Remove deletes the backup of an image.
func (b *Backuper) Remove(ctx context.Context, title string) error {
	return b.objects.Delete(ctx, ObjectKey(title))
}

// HandleEvent keeps the bucket in step with image events.
func (b *Backuper) HandleEvent(ctx context.Context, msg mq.Message) error {
	event, err := mq.DecodeImageEvent(msg)
	if err != nil {
		// Malformed payloads would be redelivered forever.
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping undecodable image event")
		return nil
	}

	switch event.Type {
	case mq.EventImageUploaded, mq.EventImageUpdated:
		image, err := b.images.GetByTitle(ctx, event.Title)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return b.BackupImage(ctx, image)
	case mq.EventImageDeleted:
		return b.Remove(ctx, event.Title)
	default:
		log.Debug().Str("event_type", event.Type).Msg("Ignoring image event")
		return nil
	}
}

// Start runs BackupAll on the given cron schedule until Stop is called.
func (b *Backuper) Start(schedule string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.cron.AddFunc(schedule, func() {
		written, err := b.BackupAll(context.Background())
		if err != nil {
			log.Error().Err(err).Int("written", written).Msg("Image backup finished with errors")
			return
		}
		log.Info().Int("written", written).Str("bucket", b.objects.Bucket()).Msg("Image backup finished")
	})
	if err != nil {
		return fmt.Errorf("invalid backup schedule: %w", err)
	}
	b.entryID = id
	b.cron.Start()
	log.Info().Str("schedule", schedule).Msg("Image backups scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running backup to finish.
func (b *Backuper) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.entryID == 0 {
		return
	}
	ctx := b.cron.Stop()
	<-ctx.Done()
	b.cron.Remove(b.entryID)
	b.entryID = 0
}
