package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "deal_room/pkg/errors"
)

const DocumentActionUploaded = "uploaded"

// FileMetadata описывает уже сохраненный файл. Байты хранит внешнее хранилище.
type FileMetadata struct {
	StorageKey string `json:"storage_key"`
	URL        string `json:"url"`
	Name       string `json:"name"`
	MimeType   string `json:"mime_type"`
	Size       int64  `json:"size"`
}

func (f FileMetadata) validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return apperrors.NewValidationError("name", "must not be empty")
	}
	if f.StorageKey == "" && f.URL == "" {
		return apperrors.NewValidationError("url", "file has no storage reference")
	}
	if f.Size < 0 {
		return apperrors.NewValidationError("size", "must not be negative")
	}
	return nil
}

type DocumentInfo struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	MimeType       string    `json:"mime_type"`
	URL            string    `json:"url"`
	StorageKey     string    `json:"storage_key,omitempty"`
	UploadedBy     string    `json:"uploaded_by"`
	UploadedAt     time.Time `json:"uploaded_at"`
	Size           int64     `json:"size"`
	Description    string    `json:"description,omitempty"`
	IsConfidential bool      `json:"is_confidential"`
}
