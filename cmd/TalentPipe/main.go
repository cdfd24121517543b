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

	"github.com/joho/godotenv"

	"github.com/BTreeMap/TalentPipe/internal/api"
	"github.com/BTreeMap/TalentPipe/internal/flow"
	"github.com/BTreeMap/TalentPipe/internal/genai"
	"github.com/BTreeMap/TalentPipe/internal/mail"
	"github.com/BTreeMap/TalentPipe/internal/models"
	"github.com/BTreeMap/TalentPipe/internal/store"
	"github.com/BTreeMap/TalentPipe/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for TalentPipe state data
	DefaultStateDir = "/var/lib/talentpipe"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "talentpipe.db"
	// ShutdownTimeout bounds graceful shutdown of the API server
	ShutdownTimeout = 15 * time.Second
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping TalentPipe with configured modules")
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := run(flags); err != nil {
		slog.Error("TalentPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("TalentPipe exited successfully")
}

func run(flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	oracle, err := genai.NewClient(buildGenAIOptions(flags)...)
	if err != nil {
		return err
	}

	sender, err := mail.NewSMTPSender(buildMailOptions(flags)...)
	if err != nil {
		return err
	}

	orchestrator := flow.NewOrchestrator(oracle, st, sender, buildOrchestratorOptions(flags)...)
	server := api.NewServer(orchestrator, st, buildAPIOptions(flags)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	APIAddr       string
	DefaultTarget string
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	apiAddr       *string
	defaultTarget *string
	smtpHost      *string
	smtpPort      *string
	notifySMS     *bool
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
		StateDir:      os.Getenv("TALENTPIPE_STATE_DIR"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		DefaultTarget: os.Getenv("CAMPAIGN_DEFAULT_TARGET"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TALENTPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("TALENTPIPE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"TALENTPIPE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"CAMPAIGN_DEFAULT_TARGET", config.DefaultTarget)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for TalentPipe data (overrides $TALENTPIPE_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN for the store (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		defaultTarget: flag.String("campaign-default-target", config.DefaultTarget, "default campaign target cohort (overrides $CAMPAIGN_DEFAULT_TARGET)"),
		smtpHost:      flag.String("smtp-host", "", "SMTP server hostname (overrides $EMAIL_HOST)"),
		smtpPort:      flag.String("smtp-port", "", "SMTP server port (overrides $EMAIL_PORT)"),
		notifySMS:     flag.Bool("notify-sms", util.ParseBoolEnv("CAMPAIGN_NOTIFY_SMS", false), "send an operator SMS after each campaign run (overrides $CAMPAIGN_NOTIFY_SMS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"defaultTarget", *flags.defaultTarget,
		"notifySMS", *flags.notifySMS)

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore constructs the store backend from the configured DSN.
func buildStore(flags Flags) (store.Store, error) {
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildMailOptions constructs SMTP sender configuration options
func buildMailOptions(flags Flags) []mail.Option {
	var mailOpts []mail.Option
	if *flags.smtpHost != "" {
		mailOpts = append(mailOpts, mail.WithHost(*flags.smtpHost))
	}
	if *flags.smtpPort != "" {
		mailOpts = append(mailOpts, mail.WithPort(*flags.smtpPort))
	}
	return mailOpts
}

// buildOrchestratorOptions constructs turn pipeline configuration options
func buildOrchestratorOptions(flags Flags) []flow.OrchestratorOption {
	var campaignOpts []flow.CampaignOption
	if *flags.defaultTarget != "" {
		campaignOpts = append(campaignOpts, flow.WithDefaultTarget(models.TargetKey(*flags.defaultTarget)))
	}
	if *flags.notifySMS {
		notifier, err := mail.NewTwilioNotifier()
		if err != nil {
			slog.Warn("Operator SMS notifications disabled", "error", err)
		} else {
			campaignOpts = append(campaignOpts, flow.WithNotifier(notifier))
		}
	}

	var opts []flow.OrchestratorOption
	if len(campaignOpts) > 0 {
		opts = append(opts, flow.WithCampaignOptions(campaignOpts...))
	}
	if util.ParseBoolEnv("CLASSIFICATION_RETRY", false) {
		opts = append(opts, flow.WithRouterOptions(flow.WithClassificationRetry(true)))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
