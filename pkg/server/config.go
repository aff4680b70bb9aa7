package server

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/escrow"
	"github.com/clearlane/bounty/pkg/ledger"
)

// VersionInfo contains build-time version information.
type VersionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

type Config struct {
	Logger            *slog.Logger
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	VersionInfo       VersionInfo

	Core   *escrow.Core
	Ledger *ledger.Memory
	Audit  *audit.Log

	// DevFaucet enables the /v1/faucet endpoint that credits memory-ledger
	// accounts. Never enable outside local development.
	DevFaucet bool

	RateLimit rate.Limit
	RateBurst int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen addr is required")
	}
	if cfg.Core == nil {
		return errors.New("escrow core is required")
	}
	if cfg.Ledger == nil {
		return errors.New("ledger is required")
	}
	if cfg.Audit == nil {
		return errors.New("audit log is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		// 300 requests/minute per IP by default.
		cfg.RateLimit = rate.Every(time.Minute / 300)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 30
	}
	return nil
}
