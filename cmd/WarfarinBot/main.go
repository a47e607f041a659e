package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/WarfarinBot/internal/api"
	"github.com/BTreeMap/WarfarinBot/internal/flow"
	"github.com/BTreeMap/WarfarinBot/internal/line"
	"github.com/BTreeMap/WarfarinBot/internal/lockfile"
	"github.com/BTreeMap/WarfarinBot/internal/messaging"
	"github.com/BTreeMap/WarfarinBot/internal/store"
	"github.com/BTreeMap/WarfarinBot/internal/twiliowhatsapp"
	"github.com/BTreeMap/WarfarinBot/internal/util"
	"github.com/BTreeMap/WarfarinBot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir holds the lock file and the default SQLite databases.
	DefaultStateDir = "/var/lib/warfarinbot"
	// DefaultAppDBFileName is the receipts and dedup SQLite database.
	DefaultAppDBFileName = "warfarinbot.db"
	// DefaultWhatsAppDBFileName is the whatsmeow device database.
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultPort matches the port the bot has always listened on.
	DefaultPort = "10000"
	// DefaultTransports is used when TRANSPORTS is unset.
	DefaultTransports = messaging.TransportLine
)

func main() {
	loadDotEnv()
	initializeLogger(os.Getenv("LOG_LEVEL"))

	config, err := parseCommandLineFlags(loadEnvironmentConfig(), os.Args[1:])
	if err != nil {
		slog.Error("Invalid command line", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		slog.Error("WarfarinBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("WarfarinBot exited successfully")
}

// Config holds the merged .env, environment and flag configuration.
type Config struct {
	StateDir      string
	DatabaseURL   string
	RedisURL      string
	SessionTTL    time.Duration
	WhatsAppDBDSN string
	APIAddr       string
	Transports    []string

	LineChannelSecret string
	LineChannelToken  string

	TwilioAccountSID        string
	TwilioAuthToken         string
	TwilioFromNumber        string
	TwilioWebhookURL        string
	TwilioValidateSignature bool

	WhatsAppQROutput    string
	WhatsAppNumericCode bool

	DialogueConsole bool
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}
}

// parseLogLevel maps LOG_LEVEL to a slog level, defaulting to debug.
func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig reads configuration from the environment and fills defaults.
func loadEnvironmentConfig() Config {
	config := Config{
		StateDir:                util.GetenvDefault("WARFARIN_STATE_DIR", DefaultStateDir),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		SessionTTL:              util.ParseDurationEnv("SESSION_TTL", 0),
		WhatsAppDBDSN:           os.Getenv("WHATSAPP_DB_DSN"),
		APIAddr:                 util.GetenvDefault("API_ADDR", ":"+util.GetenvDefault("PORT", DefaultPort)),
		Transports:              util.SplitList(util.GetenvDefault("TRANSPORTS", DefaultTransports)),
		LineChannelSecret:       os.Getenv("LINE_CHANNEL_SECRET"),
		LineChannelToken:        os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		TwilioAccountSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:         os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber:        os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL:        os.Getenv("TWILIO_WEBHOOK_URL"),
		TwilioValidateSignature: util.ParseBoolEnv("TWILIO_VALIDATE_SIGNATURE", true),
		DialogueConsole:         util.ParseBoolEnv("DIALOGUE_CONSOLE", false),
	}
	applyStateDirDefaults(&config)

	slog.Debug("environment variables loaded",
		"WARFARIN_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"REDIS_URL_SET", config.RedisURL != "",
		"API_ADDR", config.APIAddr,
		"TRANSPORTS", config.Transports,
		"LINE_CHANNEL_SECRET_SET", config.LineChannelSecret != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "",
		"TWILIO_VALIDATE_SIGNATURE", config.TwilioValidateSignature,
		"DIALOGUE_CONSOLE", config.DialogueConsole)
	return config
}

// applyStateDirDefaults points unset database DSNs at files inside the state directory.
func applyStateDirDefaults(config *Config) {
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultAppDBFileName)
	}
	if config.WhatsAppDBDSN == "" {
		config.WhatsAppDBDSN = "file:" + filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
}

// parseCommandLineFlags applies flag overrides on top of the environment configuration.
func parseCommandLineFlags(config Config, args []string) (Config, error) {
	envDefaults := config
	fs := flag.NewFlagSet("WarfarinBot", flag.ContinueOnError)
	stateDir := fs.String("state-dir", config.StateDir, "state directory for lock file and SQLite data (overrides $WARFARIN_STATE_DIR)")
	dbDSN := fs.String("db-dsn", config.DatabaseURL, "receipts/dedup database DSN, sqlite path or postgres URL (overrides $DATABASE_URL)")
	redisURL := fs.String("redis-url", config.RedisURL, "Redis URL for dialogue sessions; empty keeps them in memory (overrides $REDIS_URL)")
	sessionTTL := fs.Duration("session-ttl", config.SessionTTL, "expiry of idle Redis sessions, 0 disables (overrides $SESSION_TTL)")
	apiAddr := fs.String("api-addr", config.APIAddr, "HTTP listen address (overrides $API_ADDR and $PORT)")
	transports := fs.String("transports", strings.Join(config.Transports, ","), "comma-separated transports: line,twilio,whatsapp (overrides $TRANSPORTS)")
	qrOutput := fs.String("qr-output", "", "path to write the WhatsApp login QR code")
	numeric := fs.Bool("numeric-code", false, "print the WhatsApp pairing code instead of a QR code")
	console := fs.Bool("dialogue-console", config.DialogueConsole, "enable POST /dialogue (overrides $DIALOGUE_CONSOLE)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	config.StateDir = *stateDir
	config.DatabaseURL = *dbDSN
	config.RedisURL = *redisURL
	config.SessionTTL = *sessionTTL
	config.APIAddr = *apiAddr
	config.Transports = util.SplitList(*transports)
	config.WhatsAppQROutput = *qrOutput
	config.WhatsAppNumericCode = *numeric
	config.DialogueConsole = *console

	// DSNs derived from the old state directory follow a -state-dir override.
	if config.StateDir != envDefaults.StateDir {
		old := envDefaults
		old.DatabaseURL, old.WhatsAppDBDSN = "", ""
		applyStateDirDefaults(&old)
		moved := Config{StateDir: config.StateDir}
		applyStateDirDefaults(&moved)
		if config.DatabaseURL == old.DatabaseURL {
			config.DatabaseURL = moved.DatabaseURL
		}
		if config.WhatsAppDBDSN == old.WhatsAppDBDSN {
			config.WhatsAppDBDSN = moved.WhatsAppDBDSN
		}
	}

	slog.Debug("flags parsed",
		"stateDir", config.StateDir,
		"dbDSN_set", config.DatabaseURL != "",
		"redisURL_set", config.RedisURL != "",
		"apiAddr", config.APIAddr,
		"transports", config.Transports,
		"dialogueConsole", config.DialogueConsole)
	return config, nil
}

func run(ctx context.Context, config Config) error {
	lock, err := lockfile.AcquireLock(config.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := ensureDirectoriesExist(config); err != nil {
		return err
	}
	st, err := store.New(buildStoreOptions(config)...)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sessions, err := buildSessionStore(ctx, config)
	if err != nil {
		return err
	}
	if closer, ok := sessions.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	services, err := buildServices(ctx, config)
	if err != nil {
		return err
	}

	slog.Info("Bootstrapping WarfarinBot", "transports", config.Transports, "addr", config.APIAddr)
	dialogue := flow.NewWarfarinFlow(sessions)
	srv := api.NewServer(st, dialogue, services, buildAPIOptions(config)...)
	return srv.Run(ctx)
}

// ensureDirectoriesExist creates the parent directory of a file-based database.
func ensureDirectoriesExist(config Config) error {
	if config.DatabaseURL == "" || store.DetectDSNType(config.DatabaseURL) == "postgres" {
		return nil
	}
	path := strings.TrimPrefix(config.DatabaseURL, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return nil
}

// buildStoreOptions selects the receipts/dedup backend from the DSN.
func buildStoreOptions(config Config) []store.Option {
	var storeOpts []store.Option
	if config.DatabaseURL == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(config.DatabaseURL) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		storeOpts = append(storeOpts, store.WithPostgresDSN(config.DatabaseURL))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", config.DatabaseURL)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(config.DatabaseURL))
	}
	return storeOpts
}

func buildSessionStore(ctx context.Context, config Config) (store.SessionStore, error) {
	if config.RedisURL == "" {
		slog.Debug("Dialogue sessions kept in memory")
		return store.NewInMemorySessionStore(), nil
	}
	sessions, err := store.NewRedisSessionStore(ctx, config.RedisURL, config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("open redis session store: %w", err)
	}
	return sessions, nil
}

var errNoTransports = errors.New("no transports configured")

// buildServices creates one messaging service per configured transport.
func buildServices(ctx context.Context, config Config) ([]messaging.Service, error) {
	if len(config.Transports) == 0 {
		return nil, errNoTransports
	}
	var services []messaging.Service
	for _, name := range config.Transports {
		svc, err := buildService(ctx, name, config)
		if err != nil {
			return nil, fmt.Errorf("configure %s transport: %w", name, err)
		}
		services = append(services, svc)
	}
	return services, nil
}

func buildService(ctx context.Context, name string, config Config) (messaging.Service, error) {
	switch name {
	case messaging.TransportLine:
		if config.LineChannelSecret == "" {
			return nil, errors.New("LINE_CHANNEL_SECRET must be set")
		}
		client, err := line.NewClient(line.WithChannelToken(config.LineChannelToken))
		if err != nil {
			return nil, err
		}
		return messaging.NewLineService(client, config.LineChannelSecret), nil

	case messaging.TransportTwilio:
		client, err := twiliowhatsapp.NewClient(buildTwilioOptions(config)...)
		if err != nil {
			return nil, err
		}
		var opts []messaging.TwilioOption
		if config.TwilioValidateSignature {
			if config.TwilioWebhookURL == "" {
				return nil, errors.New("TWILIO_WEBHOOK_URL must be set when signature validation is enabled")
			}
			opts = append(opts, messaging.WithSignatureValidation(client.Validator(), config.TwilioWebhookURL))
		} else {
			slog.Warn("Twilio webhook signature validation disabled")
		}
		return messaging.NewTwilioService(client, opts...), nil

	case messaging.TransportWhatsApp:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(config)...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(client), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", name)
	}
}

func buildTwilioOptions(config Config) []twiliowhatsapp.Option {
	var opts []twiliowhatsapp.Option
	if config.TwilioAccountSID != "" {
		opts = append(opts, twiliowhatsapp.WithAccountSID(config.TwilioAccountSID))
	}
	if config.TwilioAuthToken != "" {
		opts = append(opts, twiliowhatsapp.WithAuthToken(config.TwilioAuthToken))
	}
	if config.TwilioFromNumber != "" {
		opts = append(opts, twiliowhatsapp.WithFromWhats(config.TwilioFromNumber))
	}
	return opts
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(config Config) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if config.WhatsAppQROutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(config.WhatsAppQROutput))
	}
	if config.WhatsAppNumericCode {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if config.WhatsAppDBDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(config.WhatsAppDBDSN))
	}
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config) []api.Option {
	var apiOpts []api.Option
	if config.APIAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(config.APIAddr))
	}
	if config.DialogueConsole {
		apiOpts = append(apiOpts, api.WithDialogueConsole(true))
	}
	return apiOpts
}
