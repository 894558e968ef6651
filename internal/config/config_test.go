package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg := Load()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.JWT.Expiry != 7*24*time.Hour {
		t.Errorf("expected 7 day token expiry, got %s", cfg.JWT.Expiry)
	}
	if cfg.JWT.Secret == "" {
		t.Error("expected development secret fallback")
	}
	if cfg.Uploads.MaxFiles != 8 {
		t.Errorf("expected 8 upload files, got %d", cfg.Uploads.MaxFiles)
	}
	if cfg.Uploads.MaxFileBytes != 5*1024*1024 {
		t.Errorf("expected 5MiB upload limit, got %d", cfg.Uploads.MaxFileBytes)
	}
	if cfg.Uploads.URLPrefix != "/uploads/" {
		t.Errorf("unexpected upload prefix %q", cfg.Uploads.URLPrefix)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.test , ,http://b.test")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("unexpected split result: %v", got)
	}
}

func TestDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: "5432", User: "u", Password: "p", Database: "shop", Schema: "public", SSLMode: "disable",
	}}
	want := "postgres://u:p@db:5432/shop?sslmode=disable&search_path=public"
	if got := cfg.DSN(); got != want {
		t.Errorf("DSN() = %s, want %s", got, want)
	}
}
