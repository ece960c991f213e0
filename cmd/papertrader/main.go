package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/eddiefleurent/paper_tiger/internal/calendar"
	"github.com/eddiefleurent/paper_tiger/internal/config"
	"github.com/eddiefleurent/paper_tiger/internal/dashboard"
	"github.com/eddiefleurent/paper_tiger/internal/engine"
	"github.com/eddiefleurent/paper_tiger/internal/market"
	"github.com/eddiefleurent/paper_tiger/internal/models"
	"github.com/eddiefleurent/paper_tiger/internal/storage"
	"github.com/eddiefleurent/paper_tiger/internal/util"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// App wires the engine to its feed, calendar, storage and dashboard.
type App struct {
	config  *config.Config
	service *engine.Service
	matcher *engine.Matcher
	flusher *storage.Flusher
	dash    *dashboard.Server
	logger  *log.Logger
	stop    chan struct{}
}

func main() {
	var configPath string
	var reportOnly bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&reportOnly, "report", false, "Print the portfolio report and exit")
	flag.Parse()

	// Load .env before the config so ${VAR} references expand
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create logger
	logger := log.New(newLogWriter(cfg), "[TRADER] ", log.LstdFlags|log.Lshortfile)

	logger.Printf("Starting paper trader with %s feed", cfg.Market.Provider)
	logger.Println("Paper trading only - no real orders leave this process")

	app, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to start: %v", err)
	}

	if reportOnly {
		printReport(os.Stdout, app.service.Report(context.Background()))
		return
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Println("Shutdown signal received, stopping trader...")
		close(app.stop)
		cancel()
	}()

	// Run the trader
	if err := app.Run(ctx); err != nil {
		logger.Fatalf("Trader error: %v", err)
	}

	logger.Println("Trader stopped successfully")
}

// newApp assembles the full process from the loaded configuration.
func newApp(cfg *config.Config, logger *log.Logger) (*App, error) {
	source, err := buildSource(cfg, logger)
	if err != nil {
		return nil, err
	}

	cal := calendar.New(cfg.Location(), calendar.NewDateSet(cfg.Calendar.Holidays))

	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	service, err := loadOrInitService(cfg, source, cal, store, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:  cfg,
		service: service,
		logger:  logger,
		stop:    make(chan struct{}),
	}

	app.matcher = engine.NewMatcher(service, logger, engine.MatcherConfig{
		PollInterval: cfg.GetPollInterval(),
		PassTimeout:  engine.DefaultMatcherConfig.PassTimeout,
	})

	app.flusher = storage.NewFlusher(store, service, logger, storage.FlusherConfig{
		PollInterval:  storage.DefaultFlusherConfig.PollInterval,
		FlushInterval: cfg.GetFlushInterval(),
	})

	if cfg.Dashboard.Enabled {
		app.dash = dashboard.NewServer(dashboard.Config{
			ListenAddr: cfg.Dashboard.ListenAddr,
			AuthToken:  cfg.Dashboard.AuthToken,
		}, service, logrus.New())
	}

	return app, nil
}

// buildSource assembles the market data chain for the configured
// provider: raw feed, then retries, then circuit breaker, then a
// short-lived cache.
func buildSource(cfg *config.Config, logger *log.Logger) (market.Source, error) {
	var feed market.Source
	switch cfg.Market.Provider {
	case "eastmoney":
		api := market.NewEastmoneyAPIWithBaseURL(cfg.Market.Endpoint).
			WithTimeout(cfg.GetMarketTimeout()).
			WithRateLimit(cfg.Market.RatePerSec, cfg.Market.Burst)
		if cfg.Market.UTToken != "" {
			api = api.WithToken(cfg.Market.UTToken)
		}
		feed = market.NewRetrySource(api, logger)
	case "random_walk":
		feed = market.NewRandomWalkSource()
	default:
		return nil, fmt.Errorf("unknown market provider %q", cfg.Market.Provider)
	}
	return market.NewPriceCache(market.NewBreakerSource(feed), cfg.GetCacheTTL()), nil
}

// loadOrInitService restores the account from disk, or funds a fresh one
// when no usable state exists. Unusable state is logged and replaced
// rather than aborting startup; the fresh account is saved immediately
// so the next start finds it.
func loadOrInitService(cfg *config.Config, source market.Source, cal *calendar.Calendar,
	store storage.Storage, logger *log.Logger) (*engine.Service, error) {

	engineCfg := engine.Config{
		InitialCash: cfg.InitialCashDecimal(),
		TPlus:       cfg.TPlusDays(),
		OrderTTL:    cfg.GetOrderTTL(),
		MaxAttempts: cfg.Engine.MaxAttempts,
	}

	snap, err := store.Load()
	if err == nil {
		service, rerr := engine.Restore(snap, source, cal, store, logger, engineCfg)
		if rerr == nil {
			logger.Printf("Restored state from %s (trading day %s, %d pending orders)",
				cfg.Storage.Path, snap.LastTradingDay, len(snap.PendingOrders))
			return service, nil
		}
		err = rerr
	}

	if errors.Is(err, storage.ErrNoState) {
		logger.Printf("No saved state at %s, funding fresh account with %s",
			cfg.Storage.Path, util.FormatCNY(engineCfg.InitialCash))
	} else {
		logger.Printf("Saved state unusable (%v), funding fresh account with %s",
			err, util.FormatCNY(engineCfg.InitialCash))
	}

	service := engine.New(source, cal, store, logger, engineCfg)
	if err := service.Save(); err != nil {
		return nil, err
	}
	return service, nil
}

// Run starts the matcher, flusher and dashboard, then blocks until the
// context is canceled or the stop channel closes. The flusher writes a
// final snapshot on its way out.
func (a *App) Run(ctx context.Context) error {
	a.logger.Println("Trader starting main loop...")
	a.logger.Printf("Account ready: %s available, %d pending order(s)",
		util.FormatCNY(a.service.AvailableCash()), a.service.PendingCount())

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.dash != nil {
		go func() {
			if err := a.dash.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Printf("Dashboard error: %v", err)
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.matcher.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		a.flusher.Run(runCtx)
	}()

	select {
	case <-ctx.Done():
	case <-a.stop:
	}

	cancel()
	wg.Wait()

	if a.dash != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := a.dash.Shutdown(shutdownCtx); err != nil {
			a.logger.Printf("Dashboard shutdown: %v", err)
		}
	}

	return nil
}

// newLogWriter tees the process log into the rotating file when one is
// configured.
func newLogWriter(cfg *config.Config) io.Writer {
	if cfg.Logging.File == "" {
		return os.Stdout
	}
	return io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.Logging.File,
		MaxSize:    cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

// printReport renders the account summary for one-shot inspection from
// the command line.
func printReport(w io.Writer, report *models.PortfolioReport) {
	fmt.Fprintf(w, "\nTotal assets: %s\n", util.FormatCNY(report.TotalAssets))
	fmt.Fprintf(w, "Cash:         %s (frozen %s)\n",
		util.FormatCNY(report.Cash), util.FormatCNY(report.FrozenCash))
	fmt.Fprintf(w, "Stock value:  %s\n", util.FormatCNY(report.StockValue))
	fmt.Fprintf(w, "Profit:       %s total, %s today\n",
		util.FormatCNY(report.TotalProfit), util.FormatCNY(report.TodayProfit))
	fmt.Fprintf(w, "Activity:     %d trade(s), %d pending order(s)\n\n",
		report.TradeCount, report.PendingOrders)

	if len(report.Positions) == 0 {
		fmt.Fprintln(w, "No open positions.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Symbol", "Qty", "Avg Cost", "Last", "Value", "P/L")
	for _, pos := range report.Positions {
		table.Append(
			pos.Symbol,
			fmt.Sprintf("%d", pos.Quantity),
			pos.AvgCost.StringFixed(3),
			pos.CurrentPrice.StringFixed(2),
			util.FormatCNY(pos.MarketValue),
			util.FormatCNY(pos.Profit),
		)
	}
	table.Render()
}
