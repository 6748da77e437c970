package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LEADERBOARD_TTL_SECONDS", "")
	t.Setenv("CATALOG_DIR", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.LeaderboardTTLSeconds != 30 {
		t.Errorf("LeaderboardTTLSeconds = %d, want 30", cfg.LeaderboardTTLSeconds)
	}
	if cfg.CatalogDir != "decals" {
		t.Errorf("CatalogDir = %q, want decals", cfg.CatalogDir)
	}
	if cfg.Address() != ":8080" {
		t.Errorf("Address() = %q, want :8080", cfg.Address())
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("LEADERBOARD_TTL_SECONDS", "-5")

	cfg := Load()
	if cfg.LeaderboardTTLSeconds != 30 {
		t.Fatalf("LeaderboardTTLSeconds = %d, want fallback 30", cfg.LeaderboardTTLSeconds)
	}
}
