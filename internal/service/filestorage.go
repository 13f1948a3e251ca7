package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"deal_room/internal/config"
	"deal_room/internal/domain"
	apperrors "deal_room/pkg/errors"
	"deal_room/pkg/logger"
)

const sniffLength = 3072

// FileUpload: входящий файл. Body должен уметь перематываться: S3 подписывает payload.
type FileUpload struct {
	RoomID      uuid.UUID
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

// FileStorage хранит байты документов. Ядро видит только FileMetadata.
type FileStorage interface {
	Upload(ctx context.Context, upload FileUpload) (domain.FileMetadata, error)
	PresignGet(ctx context.Context, storageKey, fileName string) (string, error)
	Delete(ctx context.Context, storageKey string) error
}

type objectStore interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type s3FileStorage struct {
	store     objectStore
	presigner objectPresigner
	cfg       config.S3Config
	log       logger.Logger
}

// NewS3FileStorage работает и с AWS, и с MinIO через BaseEndpoint.
func NewS3FileStorage(ctx context.Context, cfg config.S3Config, log logger.Logger) (FileStorage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3FileStorage(client, s3.NewPresignClient(client), cfg, log), nil
}

func newS3FileStorage(store objectStore, presigner objectPresigner, cfg config.S3Config, log logger.Logger) *s3FileStorage {
	return &s3FileStorage{store: store, presigner: presigner, cfg: cfg, log: log}
}

func (s *s3FileStorage) Upload(ctx context.Context, upload FileUpload) (domain.FileMetadata, error) {
	name := sanitizeFileName(upload.Name)
	if name == "" {
		return domain.FileMetadata{}, apperrors.NewValidationError("file", "file name is required")
	}
	if upload.Size > s.cfg.MaxUploadBytes {
		return domain.FileMetadata{}, apperrors.NewValidationError("file", fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxUploadBytes))
	}

	contentType, err := detectContentType(upload)
	if err != nil {
		return domain.FileMetadata{}, err
	}

	key := path.Join("deal-rooms", upload.RoomID.String(), uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	_, err = s.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.cfg.Bucket),
		Key:                aws.String(key),
		Body:               upload.Body,
		ContentLength:      aws.Int64(upload.Size),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", name)),
	})
	if err != nil {
		s.log.Error("Failed to upload document", "error", err, "key", key)
		return domain.FileMetadata{}, fmt.Errorf("upload document: %w", err)
	}

	return domain.FileMetadata{
		StorageKey: key,
		URL:        fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key),
		Name:       name,
		MimeType:   contentType,
		Size:       upload.Size,
	}, nil
}

func (s *s3FileStorage) PresignGet(ctx context.Context, storageKey, fileName string) (string, error) {
	in := &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(storageKey),
	}
	if fileName != "" {
		in.ResponseContentDisposition = aws.String(fmt.Sprintf("attachment; filename=%q", fileName))
	}

	req, err := s.presigner.PresignGetObject(ctx, in, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		s.log.Error("Failed to presign document download", "error", err, "key", storageKey)
		return "", fmt.Errorf("presign download: %w", err)
	}
	return req.URL, nil
}

func (s *s3FileStorage) Delete(ctx context.Context, storageKey string) error {
	_, err := s.store.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(storageKey),
	})
	if err != nil {
		s.log.Error("Failed to delete document", "error", err, "key", storageKey)
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// detectContentType доверяет клиенту, если тот прислал конкретный тип, иначе смотрит на первые байты.
func detectContentType(upload FileUpload) (string, error) {
	declared := strings.TrimSpace(upload.ContentType)
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if _, err := upload.Body.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}
	return mimetype.Detect(head[:n]).String(), nil
}

func sanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
