package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bigdata5911/sales-agent/internal/api"
	"github.com/bigdata5911/sales-agent/internal/genai"
	"github.com/bigdata5911/sales-agent/internal/lockfile"
	"github.com/bigdata5911/sales-agent/internal/messaging"
	"github.com/bigdata5911/sales-agent/internal/scheduler"
	"github.com/bigdata5911/sales-agent/internal/store"
	"github.com/bigdata5911/sales-agent/internal/twiliowhatsapp"
	"github.com/bigdata5911/sales-agent/internal/util"
	"github.com/bigdata5911/sales-agent/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for sales agent state data
	DefaultStateDir = "/var/lib/sales-agent"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "sales-agent.db"
	// BackendTwilio selects the Twilio WhatsApp gateway
	BackendTwilio = "twilio"
	// BackendWhatsApp selects the direct Whatsmeow session gateway
	BackendWhatsApp = "whatsapp"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// A single instance per state directory; the WhatsApp session and the
	// SQLite file cannot be shared.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	msgService, err := buildMessagingService(flags)
	if err != nil {
		slog.Error("Failed to create messaging service", "error", err)
		os.Exit(1)
	}

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags, config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping sales agent with configured modules", "backend", *flags.backend)
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	if err := api.Run(ctx, storeOpts, genaiOpts, msgService, apiOpts); err != nil {
		slog.Error("Sales agent failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Sales agent exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	WhatsAppDSN   string
	StateDir      string
	OpenAIKey     string
	OpenAIModel   string
	APIAddr       string
	Backend       string
	FollowUpHours int
	SweepCron     string
	AutoInitial   bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDSN         *string
	whatsappDSN   *string
	openaiKey     *string
	openaiModel   *string
	apiAddr       *string
	backend       *string
	followUpHours *int
	sweepCron     *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		StateDir:      os.Getenv("SALES_AGENT_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		APIAddr:       os.Getenv("API_ADDR"),
		Backend:       os.Getenv("MESSAGING_BACKEND"),
		FollowUpHours: util.ParseIntEnv("FOLLOW_UP_DELAY_HOURS", 24),
		SweepCron:     os.Getenv("FOLLOW_UP_SWEEP_CRON"),
		AutoInitial:   util.ParseBoolEnv("AUTO_INITIAL_MESSAGE", true),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SALES_AGENT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Backend == "" {
		config.Backend = BackendTwilio
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, "whatsmeow.db")
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"SALES_AGENT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Backend,
		"FOLLOW_UP_DELAY_HOURS", config.FollowUpHours)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write WhatsApp login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for sales agent data (overrides $SALES_AGENT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the application store (overrides $DATABASE_URL)"),
		whatsappDSN:   flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:   flag.String("openai-model", config.OpenAIModel, "OpenAI model name (overrides $OPENAI_MODEL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		backend:       flag.String("messaging-backend", config.Backend, "messaging backend: twilio or whatsapp (overrides $MESSAGING_BACKEND)"),
		followUpHours: flag.Int("follow-up-delay-hours", config.FollowUpHours, "hours before a quiet contacted lead gets a follow-up (overrides $FOLLOW_UP_DELAY_HOURS)"),
		sweepCron:     flag.String("sweep-cron", config.SweepCron, "cron expression for the follow-up sweep (overrides $FOLLOW_UP_SWEEP_CRON)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"backend", *flags.backend,
		"followUpHours", *flags.followUpHours)

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildMessagingService constructs the messaging gateway selected by the
// backend flag.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch *flags.backend {
	case BackendWhatsApp:
		var waOpts []whatsapp.Option
		if *flags.whatsappDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDSN))
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil
	default:
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	}
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs generation client configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.followUpHours > 0 {
		apiOpts = append(apiOpts, api.WithFollowUpDelay(time.Duration(*flags.followUpHours)*time.Hour))
	}
	if *flags.sweepCron != "" {
		apiOpts = append(apiOpts, api.WithSweepCron(*flags.sweepCron))
	} else {
		apiOpts = append(apiOpts, api.WithSweepCron(scheduler.DefaultSweepCron))
	}
	if !config.AutoInitial {
		apiOpts = append(apiOpts, api.WithoutAutoInitialMessage())
	}
	return apiOpts
}
