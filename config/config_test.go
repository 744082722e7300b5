package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("REDIS_HOST", "")

	cfg := Load()
	if cfg.Port != "3001" {
		t.Fatalf("Port: got %q", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Fatalf("Environment: got %q", cfg.Environment)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Fatalf("AllowedOrigins: got %v", cfg.AllowedOrigins)
	}
	if cfg.Redis.Host != "localhost" || cfg.Redis.Port != "6379" {
		t.Fatalf("Redis: got %+v", cfg.Redis)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ADMIN_PASSWORD", "hunter2")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("REDIS_HOST", "redis.internal")

	cfg := Load()
	if cfg.Port != "9000" || cfg.Environment != "production" {
		t.Fatalf("got %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("AllowedOrigins: got %v", cfg.AllowedOrigins)
	}
	if cfg.AdminPassword != "hunter2" || cfg.JWTSecret != "secret" {
		t.Fatalf("credentials not read from env")
	}
	if cfg.Redis.Host != "redis.internal" {
		t.Fatalf("Redis.Host: got %q", cfg.Redis.Host)
	}
}
