package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moolah-app/moolah-api/internal/models"
	appErrors "github.com/moolah-app/moolah-api/pkg/errors"
	"github.com/moolah-app/moolah-api/pkg/jobs"
)

type seasonImageRepository interface {
	Create(ctx context.Context, image *models.SeasonImage) error
	List(ctx context.Context) ([]models.SeasonImage, error)
	FindByID(ctx context.Context, id string) (*models.SeasonImage, error)
	SetBackground(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type imageStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// SetBackgroundRequest names the image to promote to active background.
type SetBackgroundRequest struct {
	ID string `json:"id" validate:"required"`
}

// SeasonImageConfig controls upload validation and URL derivation.
type SeasonImageConfig struct {
	PublicPath       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// SeasonImageService manages uploaded background images. File removal runs on
// the background queue so a slow or flaky disk never blocks the request.
type SeasonImageService struct {
	repo    seasonImageRepository
	storage imageStorage
	cleanup *jobs.Queue
	config  SeasonImageConfig
	logger  *zap.Logger
}

// NewSeasonImageService constructs a SeasonImageService.
func NewSeasonImageService(repo seasonImageRepository, storage imageStorage, cleanup *jobs.Queue, config SeasonImageConfig, logger *zap.Logger) *SeasonImageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeasonImageService{repo: repo, storage: storage, cleanup: cleanup, config: config, logger: logger}
}

// Upload validates and stores one image, then records it. The stored file is
// removed again if the database insert fails.
func (s *SeasonImageService) Upload(ctx context.Context, header *multipart.FileHeader) (*models.SeasonImage, error) {
	if header == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "image file is required")
	}
	if s.config.MaxFileSizeBytes > 0 && header.Size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("image exceeds maximum size of %d bytes", s.config.MaxFileSizeBytes))
	}

	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	defer file.Close() //nolint:errcheck

	sniff := make([]byte, 512)
	n, err := file.Read(sniff)
	if err != nil && err != io.EOF {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload")
	}
	contentType := http.DetectContentType(sniff[:n])
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("unsupported image type %s", contentType))
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rewind upload")
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = extensionFor(contentType)
	}
	fileName := uuid.NewString() + ext

	if _, err := s.storage.SaveStream(fileName, file); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store image")
	}

	image := &models.SeasonImage{FileName: fileName}
	if err := s.repo.Create(ctx, image); err != nil {
		if removeErr := s.storage.Delete(fileName); removeErr != nil {
			s.logger.Warn("orphaned upload could not be removed", zap.String("file", fileName), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record image")
	}

	image.URL = s.publicURL(fileName)
	return image, nil
}

// List returns all images with their public URLs, newest first.
func (s *SeasonImageService) List(ctx context.Context) ([]models.SeasonImage, error) {
	images, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list images")
	}
	for i := range images {
		images[i].URL = s.publicURL(images[i].FileName)
	}
	return images, nil
}

// SetBackground makes the given image the active background.
func (s *SeasonImageService) SetBackground(ctx context.Context, id string) error {
	if err := s.repo.SetBackground(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "image not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set background")
	}
	return nil
}

// Delete removes the record and queues the file for removal from storage.
func (s *SeasonImageService) Delete(ctx context.Context, id string) error {
	image, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "image not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load image")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "image not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete image")
	}

	if s.cleanup != nil {
		job := jobs.Job{ID: uuid.NewString(), Type: "season_image_delete", Payload: image.FileName}
		if err := s.cleanup.Enqueue(job); err != nil {
			s.logger.Warn("file cleanup could not be queued", zap.String("file", image.FileName), zap.Error(err))
		}
	} else if err := s.storage.Delete(image.FileName); err != nil {
		s.logger.Warn("image file could not be removed", zap.String("file", image.FileName), zap.Error(err))
	}

	return nil
}

// SeasonImageCleanupHandler returns the queue handler that removes deleted
// image files from storage.
func SeasonImageCleanupHandler(store imageStorage) jobs.Handler {
	return func(_ context.Context, job jobs.Job) error {
		fileName, ok := job.Payload.(string)
		if !ok {
			return fmt.Errorf("unexpected cleanup payload %T", job.Payload)
		}
		return store.Delete(fileName)
	}
}

func (s *SeasonImageService) mimeAllowed(contentType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return strings.HasPrefix(contentType, "image/")
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, contentType) {
			return true
		}
	}
	return false
}

func (s *SeasonImageService) publicURL(fileName string) string {
	base := s.config.PublicPath
	if base == "" {
		base = "/uploads"
	}
	return path.Join(base, fileName)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}
