package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Receive protocols
const (
	ProtocolIMAP = "imap"
	ProtocolPOP3 = "pop3"
)

// Config holds the application configuration
type Config struct {
	LogLevel   string
	LedgerPath string

	// Receive server (IMAP or POP3)
	Protocol string
	Receive  ServerConfig

	// Send server
	SMTP ServerConfig

	// Credentials shared by both servers
	Username string
	Password string

	InboxMailbox string
	SentMailbox  string

	ConnectRetries  int
	DialTimeout     time.Duration
	ReplyWindowDays int
}

// ServerConfig holds the address and security flag of one mail server
type ServerConfig struct {
	Host   string
	Port   int
	Secure bool
}

// Address returns host:port
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory (or at ENV_FILE) is loaded first when present.
func LoadConfig() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LedgerPath:   getEnv("LEDGER_PATH", "/data/mail_ledger.db"),
		Protocol:     strings.ToLower(getEnv("RECEIVE_PROTOCOL", ProtocolIMAP)),
		InboxMailbox: getEnv("INBOX_MAILBOX", "INBOX"),
		SentMailbox:  getEnv("SENT_MAILBOX", ""),
	}

	var err error
	if cfg.ConnectRetries, err = getEnvInt("CONNECT_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.ReplyWindowDays, err = getEnvInt("REPLY_WINDOW_DAYS", 7); err != nil {
		return nil, err
	}
	if cfg.DialTimeout, err = getEnvDuration("DIAL_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	var prefix string
	switch cfg.Protocol {
	case ProtocolIMAP:
		prefix = "IMAP_"
	case ProtocolPOP3:
		prefix = "POP3_"
	default:
		return nil, fmt.Errorf("RECEIVE_PROTOCOL must be %q or %q, got %q", ProtocolIMAP, ProtocolPOP3, cfg.Protocol)
	}

	if cfg.Receive, err = loadServer(prefix); err != nil {
		return nil, err
	}
	if cfg.SMTP, err = loadServer("SMTP_"); err != nil {
		return nil, err
	}

	if cfg.Username, err = requireEnv("EMAIL_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Password, err = requireEnv("EMAIL_PASSWORD"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadServer reads <prefix>HOST, <prefix>PORT and <prefix>SECURE, all required
func loadServer(prefix string) (ServerConfig, error) {
	var srv ServerConfig

	host, err := requireEnv(prefix + "HOST")
	if err != nil {
		return srv, err
	}
	portStr, err := requireEnv(prefix + "PORT")
	if err != nil {
		return srv, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return srv, fmt.Errorf("%sPORT must be a number, got %q", prefix, portStr)
	}
	secureStr, err := requireEnv(prefix + "SECURE")
	if err != nil {
		return srv, err
	}
	secure, err := parseBool(secureStr)
	if err != nil {
		return srv, fmt.Errorf("%sSECURE: %w", prefix, err)
	}

	srv.Host = host
	srv.Port = port
	srv.Secure = secure
	return srv, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// requireEnv returns an error when the variable is unset or empty
func requireEnv(key string) (string, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

// getEnvInt gets an environment variable as an integer or returns a default value.
// A set but malformed value is an error.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, value)
	}
	return intValue, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration, got %q", key, value)
	}
	return d, nil
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", value)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.LedgerPath == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}
	if c.InboxMailbox == "" {
		return fmt.Errorf("INBOX_MAILBOX must not be empty")
	}
	if c.Receive.Port < 1 || c.Receive.Port > 65535 {
		return fmt.Errorf("invalid %s port: %d", strings.ToUpper(c.Protocol), c.Receive.Port)
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
	}
	if c.ConnectRetries < 0 || c.ConnectRetries > 20 {
		return fmt.Errorf("CONNECT_RETRIES must be between 0 and 20")
	}
	if c.ReplyWindowDays < 1 {
		return fmt.Errorf("REPLY_WINDOW_DAYS must be at least 1")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("DIAL_TIMEOUT must be positive")
	}
	return nil
}

// ReplyWindow returns the time window used by the content-similarity reply check
func (c *Config) ReplyWindow() time.Duration {
	return time.Duration(c.ReplyWindowDays) * 24 * time.Hour
}
