package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagehoster/server/config"
	"github.com/imagehoster/server/internal/mq"
	"github.com/imagehoster/server/internal/store"
	"github.com/imagehoster/server/types"
)

// 1x1 transparent PNG.
const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

type storedObject struct {
	data        []byte
	contentType string
}

type memoryObjects struct {
	objects map[string]storedObject
	putErr  error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string]storedObject{}}
}

func (m *memoryObjects) EnsureBucket(ctx context.Context) error { return nil }

func (m *memoryObjects) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	m.objects[key] = storedObject{data: data, contentType: contentType}
	return nil
}

func (m *memoryObjects) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryObjects) Bucket() string { return "test-bucket" }

type staticImages struct {
	images []types.Image
}

func (s staticImages) GetAll(ctx context.Context) ([]types.Image, error) {
	return s.images, nil
}

func (s staticImages) GetByTitle(ctx context.Context, title string) (types.Image, error) {
	for _, image := range s.images {
		if image.Title == title {
			return image, nil
		}
	}
	return types.Image{}, store.ErrNotFound
}

func TestObjectKeyEscapesTitle(t *testing.T) {
	assert.Equal(t, "images/sunset", ObjectKey("sunset"))
	assert.Equal(t, "images/a%2Fb%20c", ObjectKey("a/b c"))
}

func TestBackupAll(t *testing.T) {
	objects := newMemoryObjects()
	images := staticImages{images: []types.Image{
		{ID: 1, Title: "sunset", ImageData: pngBase64},
		{ID: 2, Title: "empty"},
		{ID: 3, Title: "broken", ImageData: "%%%not-base64"},
	}}
	b := NewBackuper(images, objects)

	written, err := b.BackupAll(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, written)

	obj, ok := objects.objects["images/sunset"]
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.contentType)
	raw, _ := base64.StdEncoding.DecodeString(pngBase64)
	assert.Equal(t, raw, obj.data)
	assert.NotContains(t, objects.objects, "images/empty")
	assert.NotContains(t, objects.objects, "images/broken")
}

func TestBackupPropagatesPutErrors(t *testing.T) {
	objects := newMemoryObjects()
	objects.putErr = errors.New("bucket gone")
	b := NewBackuper(staticImages{}, objects)

	err := b.BackupImage(context.Background(), types.Image{Title: "sunset", ImageData: pngBase64})
	assert.EqualError(t, err, "bucket gone")
}

func eventMessage(t *testing.T, event mq.ImageEvent) mq.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return mq.Message{ID: "m1", Data: data}
}

func TestHandleEvent(t *testing.T) {
	objects := newMemoryObjects()
	images := staticImages{images: []types.Image{{ID: 1, Title: "sunset", ImageData: pngBase64}}}
	b := NewBackuper(images, objects)
	ctx := context.Background()

	require.NoError(t, b.HandleEvent(ctx, eventMessage(t, mq.ImageEvent{Type: mq.EventImageUploaded, Title: "sunset"})))
	assert.Contains(t, objects.objects, "images/sunset")

	// Image already gone by the time the event arrives.
	require.NoError(t, b.HandleEvent(ctx, eventMessage(t, mq.ImageEvent{Type: mq.EventImageUpdated, Title: "missing"})))

	require.NoError(t, b.HandleEvent(ctx, eventMessage(t, mq.ImageEvent{Type: mq.EventImageDeleted, Title: "sunset"})))
	assert.NotContains(t, objects.objects, "images/sunset")

	assert.NoError(t, b.HandleEvent(ctx, mq.Message{ID: "bad", Data: []byte("{")}))
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	b := NewBackuper(staticImages{}, newMemoryObjects())
	assert.Error(t, b.Start("not a schedule"))

	require.NoError(t, b.Start("@every 1h"))
	b.Stop()
	b.Stop()
}

func TestOpenDisabledAndUnknownBackends(t *testing.T) {
	objects, err := Open(context.Background(), config.StorageConfig{})
	require.NoError(t, err)
	assert.Nil(t, objects)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}
