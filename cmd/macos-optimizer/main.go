package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/app"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/cleaner"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/config"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/events"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/memopt"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/metrics"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/ops"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/store"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/web"
)

var (
	version = "dev"

	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:     "macos-optimizer",
	Short:   "Backend engine of the macOS maintenance utility",
	Version: version,
	Long: `macos-optimizer is the backend core: telemetry sampling, rule-driven
storage cleaning with multi-layer safety scoring, and coordinated memory
optimization, all under a cancellable operation registry.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/macos-optimizer/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(processesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildService assembles the backend with every subsystem wired. The sampler
// starts immediately so snapshots are warm by the time a command reads them.
func buildService(ctx context.Context) (*app.Service, *config.Config, func(), error) {
	logger.Init(debug)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}

	rules, err := config.LoadRules(cfg.Cleaner.RulesPath)
	if err != nil {
		return nil, nil, nil, err
	}

	dbPath := utils.ExpandPath(os.ExpandEnv(cfg.Database.Path))
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, nil, err
	}
	db, err := store.New(dbPath)
	if err != nil {
		return nil, nil, nil, err
	}

	bus := events.NewBus()
	registry := ops.NewRegistry(bus, ops.Permits{
		ops.ClassScan:             cfg.Permits.Scan,
		ops.ClassClean:            cfg.Permits.Clean,
		ops.ClassEmptyTrash:       cfg.Permits.EmptyTrash,
		ops.ClassMemOptimize:      cfg.Permits.MemOptimize,
		ops.ClassMemOptimizeAdmin: cfg.Permits.MemOptimizeAdmin,
		ops.ClassDashboardRefresh: cfg.Permits.DashboardRefresh,
	})

	sampler := metrics.NewSampler()
	sampler.Start(ctx)

	engine := cleaner.NewEngine(rules, registry, db, cleaner.NewProbes(), cleaner.Options{
		SizeCacheEntries: cfg.Cleaner.SizeCacheEntries,
		SizeCacheTTL:     cfg.Cleaner.SizeCacheTTL,
	})
	optimizer := memopt.New(registry, sampler)

	svc := app.New(registry, sampler, engine, optimizer, db)
	cleanup := func() {
		sampler.Stop()
		db.Close()
	}
	return svc, cfg, cleanup, nil
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the event/metrics push server for a GUI shell",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		svc, cfg, cleanup, err := buildService(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		<-svc.Sampler.Ready()

		server := web.NewServer(cfg.Web.Host, cfg.Web.Port, svc.Registry.Bus(), svc.Sampler)
		return server.Start(ctx)
	},
}
