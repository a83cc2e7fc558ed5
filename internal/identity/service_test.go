package identity

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/bozorly/bozorly_api/internal/logging"
)

type fakeAssets struct {
	ops       []string
	uploadErr error
	deleteErr error
}

func (f *fakeAssets) Upload(_ context.Context, key string, _ io.Reader, _ int64) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.ops = append(f.ops, "upload:"+key)
	return nil
}

func (f *fakeAssets) Delete(_ context.Context, key string) error {
	f.ops = append(f.ops, "delete:"+key)
	return f.deleteErr
}

type failingUpdateRepo struct {
	Repository
}

func (r failingUpdateRepo) UpdateProfile(context.Context, Identity) error {
	return errors.New("update failed")
}

func seedIdentity(t *testing.T, repo Repository, imageKey string) Identity {
	t.Helper()
	ident := Identity{
		ID:        "id-1",
		Phone:     "998901234567",
		Name:      "Anvar",
		ImageKey:  imageKey,
		Language:  "uz",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), ident); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return ident
}

func TestUpdateProfileFields(t *testing.T) {
	repo := NewMemoryRepository()
	seedIdentity(t, repo, "")
	fa := &fakeAssets{}
	svc := NewService(repo, fa, logging.Discard())

	name := "Anvar Karimov"
	lang := "ru"
	got, err := svc.UpdateProfile(context.Background(), "id-1", ProfileUpdate{Name: &name, Language: &lang}, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != name || got.Language != lang {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if len(fa.ops) != 0 {
		t.Fatalf("expected no asset operations, got %v", fa.ops)
	}
}

func TestUpdateProfileReplacesImage(t *testing.T) {
	repo := NewMemoryRepository()
	seedIdentity(t, repo, "old-key.jpg")
	fa := &fakeAssets{}
	svc := NewService(repo, fa, logging.Discard())

	img := &ImageUpload{Reader: strings.NewReader("jpeg"), Size: 4, Name: "avatar.jpg"}
	got, err := svc.UpdateProfile(context.Background(), "id-1", ProfileUpdate{}, img)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if got.ImageKey == "" || got.ImageKey == "old-key.jpg" {
		t.Fatalf("expected a fresh image key, got %q", got.ImageKey)
	}
	if len(fa.ops) != 2 {
		t.Fatalf("expected upload then delete, got %v", fa.ops)
	}
	// New asset staged before the old one is removed.
	if fa.ops[0] != "upload:"+got.ImageKey {
		t.Fatalf("expected staged upload first, got %v", fa.ops)
	}
	if fa.ops[1] != "delete:old-key.jpg" {
		t.Fatalf("expected old asset removal last, got %v", fa.ops)
	}
}

func TestUpdateProfileRollsBackStagedImage(t *testing.T) {
	repo := failingUpdateRepo{NewMemoryRepository()}
	seedIdentity(t, repo.Repository, "old-key.jpg")
	fa := &fakeAssets{}
	svc := NewService(repo, fa, logging.Discard())

	img := &ImageUpload{Reader: strings.NewReader("jpeg"), Size: 4, Name: "avatar.jpg"}
	if _, err := svc.UpdateProfile(context.Background(), "id-1", ProfileUpdate{}, img); err == nil {
		t.Fatalf("expected update to fail")
	}

	if len(fa.ops) != 2 || !strings.HasPrefix(fa.ops[0], "upload:") {
		t.Fatalf("expected staged upload then rollback delete, got %v", fa.ops)
	}
	staged := strings.TrimPrefix(fa.ops[0], "upload:")
	if fa.ops[1] != "delete:"+staged {
		t.Fatalf("expected rollback of staged asset, got %v", fa.ops)
	}

	// The record must still point at the original asset.
	ident, err := repo.FindByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ident.ImageKey != "old-key.jpg" {
		t.Fatalf("expected original image key, got %q", ident.ImageKey)
	}
}

func TestUpdateProfileUploadFailure(t *testing.T) {
	repo := NewMemoryRepository()
	seedIdentity(t, repo, "old-key.jpg")
	fa := &fakeAssets{uploadErr: errors.New("storage down")}
	svc := NewService(repo, fa, logging.Discard())

	img := &ImageUpload{Reader: strings.NewReader("jpeg"), Size: 4, Name: "avatar.jpg"}
	_, err := svc.UpdateProfile(context.Background(), "id-1", ProfileUpdate{}, img)
	if !errors.Is(err, ErrAssetOperation) {
		t.Fatalf("expected ErrAssetOperation, got %v", err)
	}

	// No mutation happened, so nothing to roll back.
	ident, err := repo.FindByID(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if ident.ImageKey != "old-key.jpg" {
		t.Fatalf("expected original image key, got %q", ident.ImageKey)
	}
}

func TestUpdateProfileSwallowsOldAssetDeleteFailure(t *testing.T) {
	repo := NewMemoryRepository()
	seedIdentity(t, repo, "old-key.jpg")
	fa := &fakeAssets{deleteErr: errors.New("storage flake")}
	svc := NewService(repo, fa, logging.Discard())

	img := &ImageUpload{Reader: strings.NewReader("jpeg"), Size: 4, Name: "avatar.jpg"}
	got, err := svc.UpdateProfile(context.Background(), "id-1", ProfileUpdate{}, img)
	if err != nil {
		t.Fatalf("expected success despite old-asset delete failure, got %v", err)
	}
	if got.ImageKey == "old-key.jpg" {
		t.Fatalf("expected replaced image key")
	}
}
