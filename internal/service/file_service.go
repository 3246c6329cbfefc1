package service

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atelierhq/onboarding-api/internal/dto"
	"github.com/atelierhq/onboarding-api/internal/events"
	"github.com/atelierhq/onboarding-api/internal/models"
	appErrors "github.com/atelierhq/onboarding-api/pkg/errors"
	"github.com/atelierhq/onboarding-api/pkg/storage"
)

type wizardTokenResolver interface {
	resolveToken(ctx context.Context, token string) (*models.SessionWithTemplate, error)
}

type fileRepository interface {
	Create(ctx context.Context, file *models.FileUpload) error
}

// uploadTypeAllowed gates the public upload endpoint to images and common
// document formats. Anything else is rejected before touching storage.
func uploadTypeAllowed(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png", "image/webp", "image/gif", "image/svg+xml",
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return true
	}
	return false
}

// FileServiceConfig tunes upload limits.
type FileServiceConfig struct {
	MaxFileSizeBytes int64
}

// FileService handles wizard file uploads. The token is the only credential,
// so uploads pass through the same session guards as the wizard itself.
type FileService struct {
	sessions wizardTokenResolver
	files    fileRepository
	backend  storage.Backend
	bus      eventEmitter
	logger   *zap.Logger
	maxSize  int64
}

// NewFileService constructs a FileService.
func NewFileService(sessions wizardTokenResolver, files fileRepository, backend storage.Backend, bus eventEmitter, logger *zap.Logger, cfg FileServiceConfig) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxSize := cfg.MaxFileSizeBytes
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	return &FileService{sessions: sessions, files: files, backend: backend, bus: bus, logger: logger, maxSize: maxSize}
}

// Upload validates the payload, hands the bytes to the storage backend, and
// records the upload against the session.
func (s *FileService) Upload(ctx context.Context, token, fileName, contentType string, data []byte) (*dto.UploadResponse, error) {
	session, err := s.sessions.resolveToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file exceeds the maximum size of %d bytes", s.maxSize))
	}
	if !uploadTypeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("file type %s is not allowed", contentType))
	}

	id := uuid.NewString()
	key := fmt.Sprintf("uploads/%s/%s/%s%s", session.OrganizationID, session.ID, id, filepath.Ext(fileName))
	url, err := s.backend.Save(ctx, key, data, contentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	file := &models.FileUpload{
		ID:             id,
		OrganizationID: session.OrganizationID,
		SessionID:      &session.ID,
		FileName:       fileName,
		URL:            url,
		FileType:       contentType,
		SizeBytes:      int64(len(data)),
	}
	if err := s.files.Create(ctx, file); err != nil {
		if delErr := s.backend.Delete(ctx, key); delErr != nil {
			s.logger.Warn("failed to clean up orphaned upload", zap.String("key", key), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record file")
	}

	s.bus.Emit(ctx, events.TopicFileUploaded, events.FilePayload{
		SessionID:      session.ID,
		FileID:         file.ID,
		OrganizationID: session.OrganizationID,
	})

	return &dto.UploadResponse{ID: file.ID, URL: file.URL, FileName: file.FileName}, nil
}
