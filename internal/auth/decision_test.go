package auth

import (
	"context"
	"testing"
	"time"

	"github.com/bozorly/bozorly_api/internal/identity"
)

func TestDecisionEngineMethod(t *testing.T) {
	repo := identity.NewMemoryRepository()
	ctx := context.Background()

	ident := identity.Identity{ID: "id-1", Phone: "998901234567", CreatedAt: time.Now()}
	if err := repo.Create(ctx, ident); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.TrustDevice(ctx, "id-1", "device-1"); err != nil {
		t.Fatalf("trust device: %v", err)
	}

	engine := NewDecisionEngine(repo)

	cases := []struct {
		name     string
		deviceID string
		want     Method
	}{
		{"no device", "", MethodPassword},
		{"trusted device", "device-1", MethodOTP},
		{"unknown device", "device-2", MethodPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Method(ctx, "998901234567", tc.deviceID)
			if err != nil {
				t.Fatalf("method: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestDecisionEngineOtherIdentityDevice(t *testing.T) {
	repo := identity.NewMemoryRepository()
	ctx := context.Background()

	for i, phone := range []string{"998901111111", "998902222222"} {
		ident := identity.Identity{ID: string(rune('a' + i)), Phone: phone, CreatedAt: time.Now()}
		if err := repo.Create(ctx, ident); err != nil {
			t.Fatalf("create %s: %v", phone, err)
		}
	}
	if err := repo.TrustDevice(ctx, "a", "device-1"); err != nil {
		t.Fatalf("trust device: %v", err)
	}

	engine := NewDecisionEngine(repo)

	// A device trusted for one identity must not lighten auth for another.
	got, err := engine.Method(ctx, "998902222222", "device-1")
	if err != nil {
		t.Fatalf("method: %v", err)
	}
	if got != MethodPassword {
		t.Fatalf("expected password for foreign device, got %s", got)
	}
}
