package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/BTreeMap/LeadPipe/internal/api"
	"github.com/BTreeMap/LeadPipe/internal/flow"
	"github.com/BTreeMap/LeadPipe/internal/genai"
	"github.com/BTreeMap/LeadPipe/internal/lockfile"
	"github.com/BTreeMap/LeadPipe/internal/mailer"
	"github.com/BTreeMap/LeadPipe/internal/store"
	"github.com/BTreeMap/LeadPipe/internal/twiliomsg"
	"github.com/BTreeMap/LeadPipe/internal/util"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LeadPipe state data
	DefaultStateDir = "/var/lib/leadpipe"
	// DefaultAppDBFileName is the default SQLite database for contacts and sessions
	DefaultAppDBFileName = "leadpipe.db"
	// DefaultWhatsAppDBFileName is the default SQLite database for the linked WhatsApp device
	DefaultWhatsAppDBFileName = "whatsmeow.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}

	script, err := loadScript(*flags.scriptFile, config.SupportEmail)
	if err != nil {
		slog.Error("Failed to load chatbot script", "error", err)
		lock.Release()
		os.Exit(1)
	}

	storeOpts := buildStoreOptions(flags)
	mailerOpts := buildMailerOptions(config)
	genaiOpts := buildGenAIOptions(flags, config)
	twilioOpts := buildTwilioOptions(config)
	waOpts := buildWhatsAppOptions(flags)
	apiOpts := buildAPIOptions(flags, config, script)

	slog.Info("Bootstrapping LeadPipe with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "mailer", len(mailerOpts), "genai", len(genaiOpts),
		"twilio", len(twilioOpts), "whatsapp", len(waOpts), "api", len(apiOpts))
	err = api.Run(storeOpts, mailerOpts, genaiOpts, twilioOpts, waOpts, apiOpts)
	lock.Release()
	if err != nil {
		slog.Error("LeadPipe failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("LeadPipe exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	AppDBDSN         string
	WhatsAppDBDSN    string
	WhatsAppEnabled  bool
	APIAddr          string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPRequireTLS   bool
	MailFrom         string
	SupportEmail     string
	BrandName        string
	OpenAIKey        string
	OpenAIModel      string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioWebhookURL string
	ScriptFile       string
	SessionTTL       string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	appDBDSN      *string
	whatsappDBDSN *string
	whatsapp      *bool
	openaiKey     *string
	apiAddr       *string
	scriptFile    *string
	sessionTTL    *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

func defaultAppDBDSN(stateDir string) string {
	return filepath.Join(stateDir, DefaultAppDBFileName)
}

func defaultWhatsAppDBDSN(stateDir string) string {
	return "file:" + filepath.Join(stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:         os.Getenv("LEADPIPE_STATE_DIR"),
		AppDBDSN:         os.Getenv("DATABASE_URL"),
		WhatsAppDBDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		WhatsAppEnabled:  util.ParseBoolEnv("WHATSAPP_ENABLED", false),
		APIAddr:          os.Getenv("API_ADDR"),
		SMTPHost:         os.Getenv("SMTP_HOST"),
		SMTPPort:         util.ParseIntEnv("SMTP_PORT", mailer.DefaultSMTPPort),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		SMTPRequireTLS:   util.ParseBoolEnv("SMTP_REQUIRE_TLS", false),
		MailFrom:         os.Getenv("MAIL_FROM"),
		SupportEmail:     os.Getenv("SUPPORT_EMAIL"),
		BrandName:        os.Getenv("BRAND_NAME"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL: os.Getenv("TWILIO_WEBHOOK_URL"),
		ScriptFile:       os.Getenv("SCRIPT_FILE"),
		SessionTTL:       os.Getenv("SESSION_TTL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No LEADPIPE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.AppDBDSN == "" {
		config.AppDBDSN = defaultAppDBDSN(config.StateDir)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.AppDBDSN)
	}
	if config.WhatsAppDBDSN == "" {
		config.WhatsAppDBDSN = defaultWhatsAppDBDSN(config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"LEADPIPE_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"WHATSAPP_ENABLED", config.WhatsAppEnabled,
		"API_ADDR", config.APIAddr,
		"SMTP_HOST", config.SMTPHost,
		"SMTP_PORT", config.SMTPPort,
		"MAIL_FROM", config.MailFrom,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioAccountSID != "",
		"TWILIO_FROM_NUMBER", config.TwilioFrom,
		"SCRIPT_FILE", config.ScriptFile,
		"SESSION_TTL", config.SessionTTL)

	return config
}

// parseCommandLineFlags parses args into fs with environment defaults. Database DSNs that were
// derived from the state directory follow a -state-dir override.
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	flags := Flags{
		qrOutput:      fs.String("qr-output", "", "path to write the WhatsApp login QR code"),
		numeric:       fs.Bool("numeric-code", false, "print the WhatsApp pairing code instead of a QR code"),
		stateDir:      fs.String("state-dir", config.StateDir, "state directory for LeadPipe data (overrides $LEADPIPE_STATE_DIR)"),
		appDBDSN:      fs.String("db-dsn", config.AppDBDSN, "database DSN for contacts and sessions (overrides $DATABASE_URL)"),
		whatsappDBDSN: fs.String("whatsapp-db-dsn", config.WhatsAppDBDSN, "database DSN for the WhatsApp device store (overrides $WHATSAPP_DB_DSN)"),
		whatsapp:      fs.Bool("whatsapp", config.WhatsAppEnabled, "enable the linked-device WhatsApp channel (overrides $WHATSAPP_ENABLED)"),
		openaiKey:     fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key for the industry classifier (overrides $OPENAI_API_KEY)"),
		apiAddr:       fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		scriptFile:    fs.String("script-file", config.ScriptFile, "YAML file with chatbot wording overrides (overrides $SCRIPT_FILE)"),
		sessionTTL:    fs.String("session-ttl", config.SessionTTL, "idle chat session lifetime, e.g. 24h (overrides $SESSION_TTL)"),
	}

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	if *flags.stateDir != config.StateDir {
		if *flags.appDBDSN == defaultAppDBDSN(config.StateDir) {
			*flags.appDBDSN = defaultAppDBDSN(*flags.stateDir)
		}
		if *flags.whatsappDBDSN == defaultWhatsAppDBDSN(config.StateDir) {
			*flags.whatsappDBDSN = defaultWhatsAppDBDSN(*flags.stateDir)
		}
		slog.Debug("Updated database DSNs based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"appDBDSN_set", *flags.appDBDSN != "",
		"whatsapp", *flags.whatsapp,
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"scriptFile", *flags.scriptFile,
		"sessionTTL", *flags.sessionTTL)
	return flags, nil
}

// ensureDirectoriesExist creates the state directory and the parent of file-based databases
func ensureDirectoriesExist(flags Flags) error {
	dirs := []string{*flags.stateDir}
	if *flags.appDBDSN != "" && store.DetectDSNType(*flags.appDBDSN) == "sqlite3" {
		dirs = append(dirs, filepath.Dir(*flags.appDBDSN))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// loadScript returns the default script, or the YAML overrides in path when set.
// A non-empty supportEmail replaces the script's support address.
func loadScript(path, supportEmail string) (flow.Script, error) {
	script := flow.DefaultScript()
	if path != "" {
		loaded, err := flow.LoadScript(path)
		if err != nil {
			return flow.Script{}, err
		}
		script = loaded
	}
	if supportEmail != "" {
		script.SupportEmail = supportEmail
	}
	return script, script.Validate()
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	dsn := *flags.appDBDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		storeOpts = append(storeOpts, store.WithPostgresDSN(dsn))
	} else {
		storeOpts = append(storeOpts, store.WithSQLiteDSN(dsn))
	}
	return storeOpts
}

// buildMailerOptions constructs SMTP options; none when SMTP_HOST is unset
func buildMailerOptions(config Config) []mailer.Option {
	if config.SMTPHost == "" {
		slog.Debug("No SMTP_HOST set, confirmation e-mails will be logged only")
		return nil
	}
	opts := []mailer.Option{
		mailer.WithHost(config.SMTPHost),
		mailer.WithPort(config.SMTPPort),
		mailer.WithFrom(config.MailFrom),
	}
	if config.SMTPUsername != "" {
		opts = append(opts, mailer.WithCredentials(config.SMTPUsername, config.SMTPPassword))
	}
	if config.SMTPRequireTLS {
		opts = append(opts, mailer.WithRequiredTLS())
	}
	return opts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags, config Config) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if config.OpenAIModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(config.OpenAIModel))
	}
	return genaiOpts
}

// buildTwilioOptions constructs Twilio options; none unless an account SID is set
func buildTwilioOptions(config Config) []twiliomsg.Option {
	if config.TwilioAccountSID == "" {
		return nil
	}
	return []twiliomsg.Option{
		twiliomsg.WithAccountSID(config.TwilioAccountSID),
		twiliomsg.WithAuthToken(config.TwilioAuthToken),
		twiliomsg.WithFrom(config.TwilioFrom),
	}
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(flags Flags) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsappDBDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDBDSN))
	}
	return waOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config, script flow.Script) []api.Option {
	apiOpts := []api.Option{api.WithScript(script)}
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.sessionTTL != "" {
		apiOpts = append(apiOpts, api.WithSessionTTL(util.ParseDuration(*flags.sessionTTL, api.DefaultSessionTTL)))
	}
	if config.BrandName != "" {
		apiOpts = append(apiOpts, api.WithBrandName(config.BrandName))
	}
	if *flags.whatsapp {
		apiOpts = append(apiOpts, api.WithWhatsApp())
	}
	if config.TwilioWebhookURL != "" {
		apiOpts = append(apiOpts, api.WithTwilioWebhookURL(config.TwilioWebhookURL))
	}
	return apiOpts
}
