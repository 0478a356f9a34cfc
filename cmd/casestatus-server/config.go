package main

import (
	"ecourts-backend/lib/browser"
	"ecourts-backend/lib/scrapers/ecourts"
	"ecourts-backend/lib/sqliteutil"
	"ecourts-backend/services/casestatus"
	"time"
)

type PortalConfig struct {
	BaseURL string `json:"base_url"`
}

type BrowserConfig struct {
	// Headless is a pointer so an explicit false survives merging with the
	// defaults.
	Headless             *bool   `json:"headless"`
	RemoteURL            string  `json:"remote_url"`
	UserAgent            string  `json:"user_agent"`
	WaitTimeoutSeconds   int     `json:"wait_timeout_seconds"`
	CreateAttempts       int     `json:"create_attempts"`
	CreateBackoffSeconds int     `json:"create_backoff_seconds"`
	LaunchesPerSecond    float64 `json:"launches_per_second"`
}

type SessionsConfig struct {
	IdleTimeoutMinutes  int    `json:"idle_timeout_minutes"`
	ReapIntervalMinutes int    `json:"reap_interval_minutes"`
	TempDir             string `json:"temp_dir"`
}

type PdfConfig struct {
	TimeoutSeconds    int     `json:"timeout_seconds"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	CacheMinutes      int     `json:"cache_minutes"`
}

type AuditConfig struct {
	// RetentionDays is how long audit entries are kept, 0 keeps them
	// forever.
	RetentionDays int `json:"retention_days"`
}

type Config struct {
	ListenPort int               `json:"listen_port"`
	Portal     PortalConfig      `json:"portal"`
	Browser    BrowserConfig     `json:"browser"`
	Sessions   SessionsConfig    `json:"sessions"`
	Pdf        PdfConfig         `json:"pdf"`
	Audit      AuditConfig       `json:"audit"`
	Database   sqliteutil.Config `json:"database"`
}

func defaultConfig() Config {
	headless := true
	return Config{
		ListenPort: 8000,
		Portal:     PortalConfig{BaseURL: ecourts.DefaultBaseURL},
		Browser: BrowserConfig{
			Headless:             &headless,
			WaitTimeoutSeconds:   20,
			CreateAttempts:       2,
			CreateBackoffSeconds: 2,
			LaunchesPerSecond:    1,
		},
		Sessions: SessionsConfig{
			IdleTimeoutMinutes:  30,
			ReapIntervalMinutes: 5,
		},
		Pdf: PdfConfig{
			TimeoutSeconds:    30,
			RequestsPerSecond: 2,
			CacheMinutes:      10,
		},
		Database: sqliteutil.Config{File: "casestatus.db"},
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func (c Config) launcherOptions() browser.ChromedpOptions {
	return browser.ChromedpOptions{
		Headless:          c.Browser.Headless == nil || *c.Browser.Headless,
		RemoteURL:         c.Browser.RemoteURL,
		UserAgent:         c.Browser.UserAgent,
		LaunchesPerSecond: c.Browser.LaunchesPerSecond,
	}
}

func (c Config) serviceOptions(verbose bool) casestatus.Options {
	opts := casestatus.DefaultOptions()
	opts.Lifecycle.BaseURL = c.Portal.BaseURL
	opts.Lifecycle.WaitTimeout = seconds(c.Browser.WaitTimeoutSeconds)
	opts.Lifecycle.CreateAttempts = c.Browser.CreateAttempts
	opts.Lifecycle.CreateBackoff = seconds(c.Browser.CreateBackoffSeconds)
	opts.IdleTimeout = minutes(c.Sessions.IdleTimeoutMinutes)
	opts.ReapInterval = minutes(c.Sessions.ReapIntervalMinutes)
	opts.TempDir = c.Sessions.TempDir

	opts.Pdf.Timeout = seconds(c.Pdf.TimeoutSeconds)
	opts.Pdf.RequestsPerSecond = c.Pdf.RequestsPerSecond
	opts.Pdf.CacheTTL = minutes(c.Pdf.CacheMinutes)
	if c.Browser.UserAgent != "" {
		opts.Pdf.UserAgent = c.Browser.UserAgent
	}
	if verbose {
		opts.Pdf.DumpDir = ".dev/resty/pdf"
	}
	return opts
}
