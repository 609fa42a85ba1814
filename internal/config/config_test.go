package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"FundListFile", cfg.FundListFile, "mutual_funds"},
		{"FundBaseURL", cfg.FundBaseURL, "https://groww.in/mutual-funds/"},
		{"StockBaseURL", cfg.StockBaseURL, "https://groww.in"},
		{"HoldingsDir", cfg.HoldingsDir, "mutual_fund_jsons"},
		{"StocksFile", cfg.StocksFile, "mf_stocks.json"},
		{"ReportFile", cfg.ReportFile, "report_summary.md"},
		{"MaxWorkers", cfg.MaxWorkers, 10},
		{"ChunkSize", cfg.ChunkSize, 30},
		{"HTTPRetryCount", cfg.HTTPRetryCount, 0},
		{"RequestsPerSecond", cfg.RequestsPerSecond, 0.0},
		{"Headless", cfg.Headless, true},
		{"ChromeRemoteURL", cfg.ChromeRemoteURL, ""},
		{"PageLoadTimeout", cfg.PageLoadTimeout, 300 * time.Second},
		{"ElementTimeout", cfg.ElementTimeout, 100 * time.Second},
		{"PriceSelector", cfg.PriceSelector, ".lpu38HeadWrap div:nth-child(3)"},
		{"HoldingsSelector", cfg.HoldingsSelector, "table.holdings101Table"},
		{"MissingPolicy", cfg.MissingPolicy, "zero"},
		{"LogLevel", cfg.LogLevel, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("FUNDTRACKER_MAX_WORKERS", "4")
	t.Setenv("FUNDTRACKER_CHUNK_SIZE", "5")
	t.Setenv("FUNDTRACKER_STOCK_BASE_URL", "https://test.example")
	t.Setenv("FUNDTRACKER_PAGE_LOAD_TIMEOUT", "45s")
	t.Setenv("FUNDTRACKER_HEADLESS", "false")
	t.Setenv("FUNDTRACKER_CHROME_REMOTE_URL", "http://127.0.0.1:9222")
	t.Setenv("FUNDTRACKER_MISSING_POLICY", "renormalize")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d, want 4", cfg.MaxWorkers)
	}
	if cfg.ChunkSize != 5 {
		t.Errorf("ChunkSize = %d, want 5", cfg.ChunkSize)
	}
	if cfg.StockBaseURL != "https://test.example" {
		t.Errorf("StockBaseURL = %q, want https://test.example", cfg.StockBaseURL)
	}
	if cfg.PageLoadTimeout != 45*time.Second {
		t.Errorf("PageLoadTimeout = %v, want 45s", cfg.PageLoadTimeout)
	}
	if cfg.Headless {
		t.Error("Headless = true, want false")
	}
	if cfg.ChromeRemoteURL != "http://127.0.0.1:9222" {
		t.Errorf("ChromeRemoteURL = %q, want http://127.0.0.1:9222", cfg.ChromeRemoteURL)
	}
	if cfg.MissingPolicy != "renormalize" {
		t.Errorf("MissingPolicy = %q, want renormalize", cfg.MissingPolicy)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	// Registered before godotenv sets it so the variable is removed afterwards
	t.Setenv("FUNDTRACKER_CHUNK_SIZE", "")
	os.Unsetenv("FUNDTRACKER_CHUNK_SIZE")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FUNDTRACKER_CHUNK_SIZE=12\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.ChunkSize != 12 {
		t.Errorf("ChunkSize = %d, want 12", cfg.ChunkSize)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "fundtracker.yaml")
	content := `
fund_list_file: funds.txt
max_workers: 3
element_timeout: 20s
price_selector: ".price"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() returned unexpected error: %v", err)
	}

	if cfg.FundListFile != "funds.txt" {
		t.Errorf("FundListFile = %q, want funds.txt", cfg.FundListFile)
	}
	if cfg.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, want 3", cfg.MaxWorkers)
	}
	if cfg.ElementTimeout != 20*time.Second {
		t.Errorf("ElementTimeout = %v, want 20s", cfg.ElementTimeout)
	}
	if cfg.PriceSelector != ".price" {
		t.Errorf("PriceSelector = %q, want .price", cfg.PriceSelector)
	}
	// Unset keys keep their defaults
	if cfg.ChunkSize != 30 {
		t.Errorf("ChunkSize = %d, want 30", cfg.ChunkSize)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("LoadFromFile() expected error for missing file, got nil")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		setupEnv    map[string]string
		wantErrText string
	}{
		{
			name:        "zero workers",
			setupEnv:    map[string]string{"FUNDTRACKER_MAX_WORKERS": "0"},
			wantErrText: "max_workers",
		},
		{
			name:        "negative chunk size",
			setupEnv:    map[string]string{"FUNDTRACKER_CHUNK_SIZE": "-1"},
			wantErrText: "chunk_size",
		},
		{
			name:        "unknown policy",
			setupEnv:    map[string]string{"FUNDTRACKER_MISSING_POLICY": "drop"},
			wantErrText: "missing_policy",
		},
		{
			name: "several at once",
			setupEnv: map[string]string{
				"FUNDTRACKER_MAX_WORKERS":         "0",
				"FUNDTRACKER_REQUESTS_PER_SECOND": "-2",
			},
			wantErrText: "requests_per_second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for key, value := range tt.setupEnv {
				t.Setenv(key, value)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("Load() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErrText) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrText)
			}
		})
	}
}
