package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"github.com/clearlane/bounty/pkg/audit"
	"github.com/clearlane/bounty/pkg/escrow"
	"github.com/clearlane/bounty/pkg/ledger"
	"github.com/clearlane/bounty/pkg/logger"
	"github.com/clearlane/bounty/pkg/metrics"
	"github.com/clearlane/bounty/pkg/server"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env if present; real deployments set env vars directly.
	_ = godotenv.Load()

	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", ":8080", "HTTP listen address (or set BOUNTYD_LISTEN_ADDR env var)")
	ownerFlag := flag.String("owner", "", "identity allowed to change the compensation rate (or set BOUNTYD_OWNER env var)")
	rateFlag := flag.Uint64("compensation-rate", escrow.DefaultCompensationRate, "initial compensation rate divisor (or set BOUNTYD_COMPENSATION_RATE env var)")
	devFaucetFlag := flag.Bool("dev-faucet", false, "enable the dev faucet endpoint for the in-memory ledger")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	flag.Parse()

	if envListenAddr := os.Getenv("BOUNTYD_LISTEN_ADDR"); envListenAddr != "" {
		*listenAddrFlag = envListenAddr
	}
	if envOwner := os.Getenv("BOUNTYD_OWNER"); envOwner != "" {
		*ownerFlag = envOwner
	}
	if envRate := os.Getenv("BOUNTYD_COMPENSATION_RATE"); envRate != "" {
		rate, err := strconv.ParseUint(envRate, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid BOUNTYD_COMPENSATION_RATE: %w", err)
		}
		*rateFlag = rate
	}
	if os.Getenv("BOUNTYD_DEV_FAUCET") == "true" {
		*devFaucetFlag = true
	}

	log := logger.New(*verboseFlag)

	if *ownerFlag == "" {
		return fmt.Errorf("--owner is required")
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      os.Getenv("SENTRY_ENVIRONMENT"),
			Release:          version,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
		}); err != nil {
			return fmt.Errorf("failed to init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	accounts := ledger.NewMemory(log)

	auditLog, err := audit.NewLog(audit.LogConfig{Logger: log})
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	core, err := escrow.New(escrow.Config{
		Logger:           log,
		Port:             accounts,
		Audit:            auditLog,
		Owner:            escrow.Identity(*ownerFlag),
		CompensationRate: *rateFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create escrow core: %w", err)
	}

	srv, err := server.New(server.Config{
		Logger:          log,
		ListenAddr:      *listenAddrFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
		VersionInfo: server.VersionInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		},
		Core:      core,
		Ledger:    accounts,
		Audit:     auditLog,
		DevFaucet: *devFaucetFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("bountyd starting", "version", version, "listen_addr", *listenAddrFlag, "owner", *ownerFlag, "compensation_rate", *rateFlag, "dev_faucet", *devFaucetFlag)
	return srv.Run(ctx)
}
