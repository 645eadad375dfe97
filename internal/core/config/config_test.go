package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v, want nil", err)
	}
	if cfg.Database.Engine != EngineSQLite {
		t.Errorf("Engine = %q, want %q", cfg.Database.Engine, EngineSQLite)
	}
	if cfg.Database.Pool.MaxOpenConns != 1 {
		t.Errorf("MaxOpenConns = %d, want 1 (single-writer engine)", cfg.Database.Pool.MaxOpenConns)
	}
	if !cfg.Database.Durability.WALMode {
		t.Error("WALMode = false, want true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"unknown engine", func(c *Config) { c.Database.Engine = "oracle" }, true},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, true},
		{"postgres without dsn", func(c *Config) {
			c.Database.Engine = EnginePostgres
			c.Database.DSN = ""
		}, true},
		{"postgres with dsn", func(c *Config) {
			c.Database.Engine = EnginePostgres
			c.Database.DSN = "postgres://localhost/invoicer"
		}, false},
		{"zero max open conns", func(c *Config) { c.Database.Pool.MaxOpenConns = 0 }, true},
		{"negative max idle conns", func(c *Config) { c.Database.Pool.MaxIdleConns = -1 }, true},
		{"idle exceeds open", func(c *Config) {
			c.Database.Pool.MaxOpenConns = 1
			c.Database.Pool.MaxIdleConns = 4
		}, true},
		{"negative busy timeout", func(c *Config) { c.Database.Durability.BusyTimeout = -time.Second }, true},
		{"empty migration table", func(c *Config) { c.Database.Migration.Table = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults with no file", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Database.Migration.Table != "schema_migrations" {
			t.Errorf("migration table = %q, want schema_migrations", cfg.Database.Migration.Table)
		}
	})

	t.Run("config file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `database:
  path: /var/lib/invoicer/app.db
  pool:
    max_open_conns: 2
    max_idle_conns: 2
  migration:
    table: invoicer_migrations
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Database.Path != "/var/lib/invoicer/app.db" {
			t.Errorf("path = %q", cfg.Database.Path)
		}
		if cfg.Database.Pool.MaxOpenConns != 2 {
			t.Errorf("MaxOpenConns = %d, want 2", cfg.Database.Pool.MaxOpenConns)
		}
		if cfg.Database.Migration.Table != "invoicer_migrations" {
			t.Errorf("migration table = %q", cfg.Database.Migration.Table)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		os.Setenv("INVOICER_DATABASE_PATH", "/tmp/env.db")
		defer os.Unsetenv("INVOICER_DATABASE_PATH")

		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Database.Path != "/tmp/env.db" {
			t.Errorf("path = %q, want /tmp/env.db", cfg.Database.Path)
		}
	})

	t.Run("invalid engine rejected", func(t *testing.T) {
		os.Setenv("INVOICER_DATABASE_ENGINE", "mongodb")
		defer os.Unsetenv("INVOICER_DATABASE_ENGINE")

		if _, err := LoadConfig(""); err == nil {
			t.Fatal("LoadConfig() expected error for unsupported engine")
		}
	})

	t.Run("missing config file errors", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Fatal("LoadConfig() expected error for missing file")
		}
	})
}
