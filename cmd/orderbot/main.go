package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mundohelados/orderbot/internal/catalog"
	"github.com/mundohelados/orderbot/internal/config"
	"github.com/mundohelados/orderbot/internal/dedup"
	"github.com/mundohelados/orderbot/internal/engine"
	"github.com/mundohelados/orderbot/internal/escalate"
	"github.com/mundohelados/orderbot/internal/genai"
	"github.com/mundohelados/orderbot/internal/lockfile"
	"github.com/mundohelados/orderbot/internal/messaging"
	"github.com/mundohelados/orderbot/internal/scheduler"
	"github.com/mundohelados/orderbot/internal/session"
	"github.com/mundohelados/orderbot/internal/whatsapp"
)

// sweepSchedule runs the maintenance jobs every five minutes, comfortably
// under the shortest retention window they enforce.
const sweepSchedule = "*/5 * * * *"

// DefaultStateDir holds the WhatsApp session database and the instance lock.
const DefaultStateDir = "/var/lib/orderbot"

// Flags holds command line flag values.
type Flags struct {
	configPath *string
	stateDir   *string
	waDSN      *string
	qrOutput   *string
	numeric    *bool
	debug      *bool
}

func main() {
	// Load .env before flag parsing so env-backed flag defaults see it.
	envErr := godotenv.Load()

	flags := parseCommandLineFlags()
	initializeLogger(*flags.debug)

	if envErr != nil {
		slog.Debug("No .env file loaded", "error", envErr)
	} else {
		slog.Debug("Loaded .env file")
	}

	cfg, err := config.Load(*flags.configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if len(cfg.OperatorIDs) == 0 {
		slog.Warn("No operator IDs configured, escalations will have no audience")
	}

	if err := run(cfg, flags); err != nil {
		slog.Error("Order bot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Order bot exited successfully")
}

func run(cfg config.Config, flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.Acquire(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	waClient, err := newWhatsAppClient(flags)
	if err != nil {
		return fmt.Errorf("failed to create WhatsApp client: %w", err)
	}

	messenger := messaging.NewWhatsAppService(waClient)
	if err := messenger.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	defer func() {
		if err := messenger.Stop(); err != nil {
			slog.Error("Failed to stop messaging service", "error", err)
		}
	}()

	catalogClient := catalog.NewClient(cfg.APIBaseURL,
		catalog.WithPaths(cfg.SearchPath, cfg.OptionsPath, cfg.OrderPath, cfg.DeliveryCostPath))

	extractor, err := genai.NewClient(cfg.OpenAIModel, cfg.IntentTimeout.D(), cfg.IntentRetries)
	if err != nil {
		return fmt.Errorf("failed to create intent extractor: %w", err)
	}

	sessions := session.NewManager()
	guard := dedup.NewGuard(cfg.MessageCacheWindow.D(), cfg.ContentDedupWindow.D())
	gate := escalate.NewGate(messenger, cfg.OperatorIDs, cfg.ErrorThreshold, cfg.AIFailureThreshold)

	eng := engine.New(cfg, engine.Deps{
		Sessions:  sessions,
		Guard:     guard,
		Gate:      gate,
		Catalog:   catalogClient,
		Extractor: extractor,
		Messenger: messenger,
	})

	sched := scheduler.New()
	defer sched.Stop()
	if err := sched.AddJob(sweepSchedule, func() {
		sessions.SweepInactive(cfg.InactivityThreshold.D())
		guard.Sweep()
	}); err != nil {
		return fmt.Errorf("failed to schedule maintenance sweep: %w", err)
	}

	slog.Info("Order bot running", "store", cfg.StoreName, "operators", len(cfg.OperatorIDs))
	eng.Run(ctx)
	return nil
}

func newWhatsAppClient(flags Flags) (*whatsapp.Client, error) {
	dsn := *flags.waDSN
	if dsn == "" {
		dsn = filepath.Join(*flags.stateDir, "whatsmeow.db")
	}
	opts := []whatsapp.Option{whatsapp.WithDBDSN(dsn)}
	if *flags.qrOutput != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	return whatsapp.NewClient(opts...)
}

func parseCommandLineFlags() Flags {
	flags := Flags{
		configPath: flag.String("config", os.Getenv("ORDERBOT_CONFIG"), "path to YAML config file (overrides $ORDERBOT_CONFIG)"),
		stateDir:   flag.String("state-dir", stateDirDefault(), "state directory for session database and instance lock (overrides $ORDERBOT_STATE_DIR)"),
		waDSN:      flag.String("wa-db-dsn", os.Getenv("WHATSAPP_DB_DSN"), "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:   flag.String("qr-output", "", "path to write login QR code"),
		numeric:    flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		debug:      flag.Bool("debug", false, "enable debug logging"),
	}
	flag.Parse()
	return flags
}

func stateDirDefault() string {
	if dir := os.Getenv("ORDERBOT_STATE_DIR"); dir != "" {
		return dir
	}
	return DefaultStateDir
}

func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
