package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.UpstreamToken != "" {
		t.Fatalf("expected empty UPSTREAM_TOKEN when unset, got %q", cfg.UpstreamToken)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REQUIRE_CATEGORY", "")
	t.Setenv("CONFIRM_BEFORE_SUBMIT", "")
	t.Setenv("TOAST_TTL_SECONDS", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if !cfg.RequireCategory || !cfg.ConfirmBeforeSubmit {
		t.Fatalf("expected strict capture toggles on by default")
	}
	if cfg.ToastTTLSeconds != 3 {
		t.Fatalf("expected toast TTL 3s, got %d", cfg.ToastTTLSeconds)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestBoolToggleParsing(t *testing.T) {
	t.Setenv("CONFIRM_BEFORE_SUBMIT", "off")
	if cfg := Load(); cfg.ConfirmBeforeSubmit {
		t.Fatalf("expected CONFIRM_BEFORE_SUBMIT=off to disable the gate")
	}

	t.Setenv("CONFIRM_BEFORE_SUBMIT", "yes")
	if cfg := Load(); !cfg.ConfirmBeforeSubmit {
		t.Fatalf("expected CONFIRM_BEFORE_SUBMIT=yes to enable the gate")
	}
}
