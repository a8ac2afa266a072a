package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		Host:           "127.0.0.1",
		Port:           "8081",
		DataBackend:    BackendCSV,
		ExpensesFile:   "expenses.csv",
		SQLiteDBPath:   "./data/spendlog.db",
		CurrencySymbol: "₹",
		LogLevel:       "info",
		ReportCacheTTL: 5 * time.Minute,
		WriteRateLimit: 120,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid csv backend config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "valid memory backend config",
			mutate:  func(c *Config) { c.DataBackend = BackendMemory },
			wantErr: false,
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			wantErr:     true,
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range low",
			mutate:      func(c *Config) { c.Port = "0" },
			wantErr:     true,
			errorString: "invalid port 0: must be between 1 and 65535",
		},
		{
			name:        "invalid port - out of range high",
			mutate:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid data backend",
			mutate:      func(c *Config) { c.DataBackend = "sheets" },
			wantErr:     true,
			errorString: "invalid data backend 'sheets': must be one of [csv sqlite memory]",
		},
		{
			name:        "csv backend missing file",
			mutate:      func(c *Config) { c.ExpensesFile = " " },
			wantErr:     true,
			errorString: "expenses file path cannot be empty when using csv backend",
		},
		{
			name: "sqlite backend missing database path",
			mutate: func(c *Config) {
				c.DataBackend = BackendSQLite
				c.SQLiteDBPath = ""
			},
			wantErr:     true,
			errorString: "SQLite database path cannot be empty when using sqlite backend",
		},
		{
			name:        "empty currency",
			mutate:      func(c *Config) { c.CurrencySymbol = "" },
			wantErr:     true,
			errorString: "currency symbol cannot be empty",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.LogLevel = "verbose" },
			wantErr:     true,
			errorString: "invalid log level 'verbose'",
		},
		{
			name:        "negative cache ttl",
			mutate:      func(c *Config) { c.ReportCacheTTL = -time.Second },
			wantErr:     true,
			errorString: "must not be negative",
		},
		{
			name:        "cache ttl too long",
			mutate:      func(c *Config) { c.ReportCacheTTL = 25 * time.Hour },
			wantErr:     true,
			errorString: "invalid report cache TTL 25h0m0s: must be at most 24 hours",
		},
		{
			name:    "rate limiting disabled",
			mutate:  func(c *Config) { c.WriteRateLimit = 0 },
			wantErr: false,
		},
		{
			name:        "negative write rate limit",
			mutate:      func(c *Config) { c.WriteRateLimit = -1 },
			wantErr:     true,
			errorString: "invalid write rate limit -1: must not be negative",
		},
		{
			name: "multiple errors are combined",
			mutate: func(c *Config) {
				c.Port = "abc"
				c.CurrencySymbol = ""
			},
			wantErr:     true,
			errorString: "must be a number\n- currency symbol cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else if err != nil {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateWithFiles(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("expenses file is a directory", func(t *testing.T) {
		cfg := validConfig()
		cfg.ExpensesFile = tmpDir
		if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "is a directory") {
			t.Errorf("Config.Validate() error = %v, want directory error", err)
		}
	})

	t.Run("sqlite directory is created", func(t *testing.T) {
		cfg := validConfig()
		cfg.DataBackend = BackendSQLite
		cfg.SQLiteDBPath = filepath.Join(tmpDir, "nested", "spendlog.db")
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Config.Validate() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(tmpDir, "nested")); err != nil {
			t.Errorf("expected database directory to be created: %v", err)
		}
	})
}

func TestLoad(t *testing.T) {
	for _, key := range []string{"HOST", "PORT", "DATA_BACKEND", "EXPENSES_FILE", "SQLITE_DB_PATH", "CURRENCY_SYMBOL", "LOG_LEVEL", "REPORT_CACHE_TTL", "WRITE_RATE_LIMIT"} {
		t.Setenv(key, "")
	}

	t.Run("default values", func(t *testing.T) {
		cfg := Load()
		if cfg.Addr() != "127.0.0.1:8081" {
			t.Errorf("Load() Addr = %v, want 127.0.0.1:8081", cfg.Addr())
		}
		if cfg.DataBackend != BackendCSV {
			t.Errorf("Load() DataBackend = %v, want csv", cfg.DataBackend)
		}
		if cfg.ExpensesFile != "expenses.csv" {
			t.Errorf("Load() ExpensesFile = %v, want expenses.csv", cfg.ExpensesFile)
		}
		if cfg.CurrencySymbol != "₹" {
			t.Errorf("Load() CurrencySymbol = %v, want ₹", cfg.CurrencySymbol)
		}
		if cfg.ReportCacheTTL != 5*time.Minute {
			t.Errorf("Load() ReportCacheTTL = %v, want 5m", cfg.ReportCacheTTL)
		}
		if cfg.WriteRateLimit != 120 {
			t.Errorf("Load() WriteRateLimit = %v, want 120", cfg.WriteRateLimit)
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("DATA_BACKEND", "sqlite")
		t.Setenv("SQLITE_DB_PATH", "/tmp/test.db")
		t.Setenv("CURRENCY_SYMBOL", "€")
		t.Setenv("REPORT_CACHE_TTL", "45s")
		t.Setenv("WRITE_RATE_LIMIT", "0")

		cfg := Load()
		if cfg.Port != "9090" || cfg.DataBackend != "sqlite" || cfg.SQLiteDBPath != "/tmp/test.db" {
			t.Errorf("Load() ignored environment: %+v", cfg)
		}
		if cfg.CurrencySymbol != "€" || cfg.ReportCacheTTL != 45*time.Second || cfg.WriteRateLimit != 0 {
			t.Errorf("Load() ignored environment: %+v", cfg)
		}
	})

	t.Run("invalid duration uses default", func(t *testing.T) {
		t.Setenv("REPORT_CACHE_TTL", "invalid")
		if cfg := Load(); cfg.ReportCacheTTL != 5*time.Minute {
			t.Errorf("Load() ReportCacheTTL = %v, want 5m", cfg.ReportCacheTTL)
		}
	})
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CURRENCY_SYMBOL", "")

	path := filepath.Join(t.TempDir(), "spendlog.toml")
	content := `
port = "9191"
expenses_file = "/var/lib/spendlog/expenses.csv"
currency_symbol = "$"
report_cache_ttl = "1m"
write_rate_limit = 30
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Port != "9191" || cfg.ExpensesFile != "/var/lib/spendlog/expenses.csv" || cfg.CurrencySymbol != "$" {
		t.Errorf("LoadFile() did not apply file values: %+v", cfg)
	}
	if cfg.ReportCacheTTL != time.Minute {
		t.Errorf("LoadFile() ReportCacheTTL = %v, want 1m", cfg.ReportCacheTTL)
	}
	if cfg.WriteRateLimit != 30 {
		t.Errorf("LoadFile() WriteRateLimit = %v, want 30", cfg.WriteRateLimit)
	}
	// keys absent from the file keep their defaults
	if cfg.Host != "127.0.0.1" || cfg.DataBackend != BackendCSV {
		t.Errorf("LoadFile() overwrote unset keys: %+v", cfg)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Errorf("LoadFile() expected error for missing file")
	}

	cfg, err = LoadFile("")
	if err != nil || cfg.Port != "8081" {
		t.Errorf("LoadFile(\"\") = %+v, %v", cfg, err)
	}
}
