package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"deal_room/internal/config"
	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

func newTestStorage() (*s3FileStorage, *fakeObjectStore, *fakePresigner) {
	store := &fakeObjectStore{}
	presigner := &fakePresigner{}
	cfg := config.S3Config{Bucket: "docs", PresignTTL: 10 * time.Minute, MaxUploadBytes: 1 << 10}
	return newS3FileStorage(store, presigner, cfg, logger.Nop()), store, presigner
}

func TestUpload_SniffsContentType(t *testing.T) {
	storage, store, _ := newTestStorage()
	roomID := uuid.New()
	body := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n")
	store.On("PutObject", mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "deal-rooms/"+roomID.String()+"/") && strings.HasSuffix(key, ".pdf")
	}), "application/pdf").Return(nil)

	meta, err := storage.Upload(context.Background(), FileUpload{
		RoomID: roomID,
		Name:   "../../Term Sheet.PDF",
		Size:   int64(len(body)),
		Body:   bytes.NewReader(body),
	})

	require.NoError(t, err)
	assert.Equal(t, "Term Sheet.PDF", meta.Name)
	assert.Equal(t, "application/pdf", meta.MimeType)
	assert.Equal(t, "s3://docs/"+meta.StorageKey, meta.URL)
	store.AssertExpectations(t)
}

func TestUpload_TrustsDeclaredType(t *testing.T) {
	storage, store, _ := newTestStorage()
	store.On("PutObject", mock.Anything, "text/csv").Return(nil)

	meta, err := storage.Upload(context.Background(), FileUpload{
		Name: "cap-table.csv", ContentType: "text/csv", Size: 3, Body: bytes.NewReader([]byte("a,b")),
	})

	require.NoError(t, err)
	assert.Equal(t, "text/csv", meta.MimeType)
}

func TestUpload_Rejects(t *testing.T) {
	storage, store, _ := newTestStorage()

	_, err := storage.Upload(context.Background(), FileUpload{Name: "big.bin", Size: 2 << 10, Body: bytes.NewReader(nil)})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = storage.Upload(context.Background(), FileUpload{Name: "  ", Size: 1, Body: bytes.NewReader([]byte("a"))})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	store.AssertNotCalled(t, "PutObject", mock.Anything, mock.Anything)
}

func TestUpload_StoreFailure(t *testing.T) {
	storage, store, _ := newTestStorage()
	store.On("PutObject", mock.Anything, mock.Anything).Return(errors.New("s3 unavailable"))

	_, err := storage.Upload(context.Background(), FileUpload{Name: "a.txt", ContentType: "text/plain", Size: 1, Body: bytes.NewReader([]byte("a"))})

	assert.Error(t, err)
}

func TestPresignGet_UsesTTL(t *testing.T) {
	storage, _, presigner := newTestStorage()

	url, err := storage.PresignGet(context.Background(), "deal-rooms/r/k.pdf", "deck.pdf")

	require.NoError(t, err)
	assert.Equal(t, "https://files.example/docs/deal-rooms/r/k.pdf?sig=1", url)
	assert.Equal(t, 10*time.Minute, presigner.expires)
}

func TestDelete(t *testing.T) {
	storage, store, _ := newTestStorage()
	store.On("DeleteObject", "k1").Return(nil)
	store.On("DeleteObject", "k2").Return(errors.New("gone"))

	assert.NoError(t, storage.Delete(context.Background(), "k1"))
	assert.Error(t, storage.Delete(context.Background(), "k2"))
}
