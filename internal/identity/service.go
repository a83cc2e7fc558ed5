package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/google/uuid"
)

// ErrAssetOperation indicates an upload or delete against the asset store failed.
var ErrAssetOperation = errors.New("asset operation failed")

// AssetStore stages and removes binary assets referenced by identity records.
type AssetStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
}

// ImageUpload carries a replacement profile image.
type ImageUpload struct {
	Reader io.Reader
	Size   int64
	Name   string
}

// Service manages identity profiles.
type Service struct {
	repo   Repository
	assets AssetStore
	logger *slog.Logger
}

// NewService creates a new identity service.
func NewService(repo Repository, assets AssetStore, logger *slog.Logger) *Service {
	return &Service{repo: repo, assets: assets, logger: logger}
}

// Get returns the identity by id.
func (s *Service) Get(ctx context.Context, id string) (Identity, error) {
	return s.repo.FindByID(ctx, id)
}

// UpdateProfile applies profile field changes and, when an image is supplied,
// replaces the stored profile asset. The new asset is staged before the record
// update commits; only after a successful commit is the previous asset
// removed. A failed record update rolls the staged asset back, so the record
// never points at a missing asset and no orphaned old asset survives a
// successful update.
func (s *Service) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate, image *ImageUpload) (Identity, error) {
	ident, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Identity{}, err
	}

	prevKey := ident.ImageKey
	stagedKey := ""
	if image != nil {
		if s.assets == nil {
			return Identity{}, fmt.Errorf("%w: asset store not configured", ErrAssetOperation)
		}
		stagedKey = uuid.NewString() + path.Ext(image.Name)
		if err := s.assets.Upload(ctx, stagedKey, image.Reader, image.Size); err != nil {
			return Identity{}, fmt.Errorf("%w: stage image: %v", ErrAssetOperation, err)
		}
		ident.ImageKey = stagedKey
	}

	if upd.Name != nil {
		ident.Name = *upd.Name
	}
	if upd.Gender != nil {
		ident.Gender = *upd.Gender
	}
	if upd.BirthDate != nil {
		ident.BirthDate = upd.BirthDate
	}
	if upd.Language != nil {
		ident.Language = *upd.Language
	}

	if err := s.repo.UpdateProfile(ctx, ident); err != nil {
		if stagedKey != "" {
			if delErr := s.assets.Delete(ctx, stagedKey); delErr != nil {
				s.logger.Error("rollback staged image", "key", stagedKey, "error", delErr)
			}
		}
		return Identity{}, err
	}

	if stagedKey != "" && prevKey != "" {
		if err := s.assets.Delete(ctx, prevKey); err != nil {
			s.logger.Error("delete replaced image", "key", prevKey, "error", err)
		}
	}

	return ident, nil
}
