package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/leadcast-lab/leadcast/internal/admin"
	"github.com/leadcast-lab/leadcast/internal/audit"
	"github.com/leadcast-lab/leadcast/internal/config"
	"github.com/leadcast-lab/leadcast/internal/core/capi"
	"github.com/leadcast-lab/leadcast/internal/core/storage"
	filestore "github.com/leadcast-lab/leadcast/internal/core/storage/file"
	"github.com/leadcast-lab/leadcast/internal/core/storage/postgres"
	"github.com/leadcast-lab/leadcast/internal/eircode"
	"github.com/leadcast-lab/leadcast/internal/intake"
	"github.com/leadcast-lab/leadcast/internal/migrations"
	"github.com/leadcast-lab/leadcast/internal/server"
	"github.com/leadcast-lab/leadcast/internal/tracking"
)

func main() {
	configPath := flag.String("config", "leadcast.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"server", cfg.Server,
		"destinations_source", cfg.Destinations.Source,
		"graph_version", cfg.CAPI.GraphVersion)

	// 2. Initialize Storage (PostgreSQL)
	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	leadStore, err := postgres.NewLeadAdapter(db)
	if err != nil {
		slog.Error("Failed to prepare lead statements", "error", err)
		os.Exit(1)
	}
	defer leadStore.Close()

	// 3. Destination credentials: database-backed by default, a YAML file
	// for development setups.
	var destStore storage.DestinationStore
	switch cfg.Destinations.Source {
	case "file":
		destStore = filestore.NewDestinationSource(cfg.Destinations.FilePath)
		slog.Info("Using file destination source", "path", cfg.Destinations.FilePath)
	default:
		destStore = postgres.NewPixelAdapter(db)
	}

	googleAdsStore := postgres.NewGoogleAdsAdapter(db)
	deliveryLog := postgres.NewDeliveryLogAdapter(db)

	// 4. Initialize the delivery pipeline
	dispatcher := capi.NewDispatcher(capi.DispatcherConfig{
		GraphVersion: cfg.CAPI.GraphVersion,
		PartnerAgent: cfg.CAPI.PartnerAgent,
		Timeout:      cfg.CAPI.DeliveryTimeout(),
		Concurrency:  cfg.CAPI.Concurrency,
		ExcerptLimit: cfg.CAPI.ExcerptLimit,
	}, audit.NewSink(deliveryLog))

	// 5. Initialize Services
	intakeSvc := intake.NewService(leadStore, destStore, dispatcher, cfg.Server.MaxBodySizeMB, cfg.CAPI.TestEventCode)

	adminSvc := admin.NewService(
		leadStore, destStore, googleAdsStore, dispatcher,
		cfg.Admin.APIKey, cfg.Admin.ExportWindowDays,
		admin.ActivationPolicy{
			AutoRecovery:        cfg.Destinations.AutoRecovery,
			EnforceSingleActive: cfg.Destinations.EnforceSingleActive,
		},
		cfg.CAPI.TestEventCode,
	)

	trackingSvc := tracking.NewService(destStore, googleAdsStore)

	var lookup *eircode.LookupClient
	if cfg.Eircode.LookupEnabled {
		lookup = eircode.NewLookupClient(cfg.Eircode.APIURL, cfg.Eircode.APIKey, cfg.Eircode.LookupTimeout())
	}
	eircodeSvc := eircode.NewService(lookup)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, cfg.Server.Mode)
	intakeSvc.RegisterRoutes(srv.Engine)
	adminSvc.RegisterRoutes(srv.Engine)
	trackingSvc.RegisterRoutes(srv.Engine)
	eircodeSvc.RegisterRoutes(srv.Engine)

	// 7. Run until a signal arrives
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
