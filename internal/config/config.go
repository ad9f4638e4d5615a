package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Notification NotificationConfig `yaml:"notification"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	JWT          JWTConfig          `yaml:"jwt"`
	Firebase     FirebaseConfig     `yaml:"firebase"`
	Queue        QueueConfig        `yaml:"queue"`
	Log          LogConfig          `yaml:"log"`
	Scheduler    SchedulerConfig    `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// SubmissionsPerMinute limits public queue submissions per client address.
	SubmissionsPerMinute int `yaml:"submissions_per_minute"`
	// TrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For header is honoured.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Database      string `yaml:"database"`
	SSLMode       string `yaml:"ssl_mode"`
	AutoMigrate   bool   `yaml:"auto_migrate"`
	ListenChanges bool   `yaml:"listen_changes"`
}

// NotificationConfig selects and configures the outbound email transport
type NotificationConfig struct {
	Provider       string `yaml:"provider"` // "function", "sendgrid", "smtp" or "log"
	FunctionURL    string `yaml:"function_url"`
	FunctionToken  string `yaml:"function_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
}

// SMTPConfig contains email service settings
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// JWTConfig contains admin session token settings
type JWTConfig struct {
	Secret             string `yaml:"secret"`
	AdminSessionExpiry int    `yaml:"admin_session_expiry_minutes"`
}

// FirebaseConfig contains identity verification settings
type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	// Disabled skips identity verification; only the admin code gates admin sessions.
	Disabled bool `yaml:"disabled"`
}

// QueueConfig contains queue and notification thresholds
type QueueConfig struct {
	MinutesPerPosition int `yaml:"minutes_per_position"`
	TopNotifyThreshold int `yaml:"top_notify_threshold"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	RecalculateApproved string `yaml:"recalculate_approved"`
	ReconcileWaiting    string `yaml:"reconcile_waiting"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies environment overrides and validates it
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Notification
	if val := os.Getenv("NOTIFY_PROVIDER"); val != "" {
		c.Notification.Provider = val
	}
	if val := os.Getenv("NOTIFY_FUNCTION_URL"); val != "" {
		c.Notification.FunctionURL = val
	}
	if val := os.Getenv("NOTIFY_FUNCTION_TOKEN"); val != "" {
		c.Notification.FunctionToken = val
	}
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Notification.SendGridAPIKey = val
	}

	// SMTP
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USER"); val != "" {
		c.SMTP.User = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.SMTP.Password = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Firebase
	if val := os.Getenv("FIREBASE_PROJECT_ID"); val != "" {
		c.Firebase.ProjectID = val
	}
	if val := os.Getenv("FIREBASE_CREDENTIALS_FILE"); val != "" {
		c.Firebase.CredentialsFile = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("SERVER_TRUSTED_PROXIES"); val != "" {
		c.Server.TrustedProxies = strings.Split(val, ",")
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.SubmissionsPerMinute == 0 {
		c.Server.SubmissionsPerMinute = 6
	}
	if _, err := c.Server.TrustedProxyNetworks(); err != nil {
		return err
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	// Notification validation
	if c.Notification.Provider == "" {
		c.Notification.Provider = "function"
	}
	switch c.Notification.Provider {
	case "function":
		if c.Notification.FunctionURL == "" {
			return fmt.Errorf("notification function URL is required")
		}
	case "sendgrid":
		if c.Notification.SendGridAPIKey == "" {
			return fmt.Errorf("SendGrid API key is required")
		}
		if c.Notification.FromEmail == "" {
			return fmt.Errorf("notification from address is required")
		}
	case "smtp":
		if c.SMTP.Host == "" {
			return fmt.Errorf("SMTP host is required")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
		}
		if c.Notification.FromEmail == "" {
			return fmt.Errorf("notification from address is required")
		}
	case "log":
	default:
		return fmt.Errorf("unknown notification provider: %s", c.Notification.Provider)
	}
	if c.Notification.TimeoutSeconds <= 0 {
		c.Notification.TimeoutSeconds = 15
	}
	if c.Notification.FromName == "" {
		c.Notification.FromName = "Church Consultations"
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AdminSessionExpiry <= 0 {
		c.JWT.AdminSessionExpiry = 8 * 60
	}

	// Firebase validation
	if !c.Firebase.Disabled && c.Firebase.ProjectID == "" {
		return fmt.Errorf("firebase project ID is required unless firebase is disabled")
	}

	// Queue defaults
	if c.Queue.MinutesPerPosition <= 0 {
		c.Queue.MinutesPerPosition = 12
	}
	if c.Queue.TopNotifyThreshold <= 0 {
		c.Queue.TopNotifyThreshold = 3
	}

	// Scheduler defaults
	if c.Scheduler.RecalculateApproved == "" {
		c.Scheduler.RecalculateApproved = "0 */15 * * * *" // Every 15 minutes
	}
	if c.Scheduler.ReconcileWaiting == "" {
		c.Scheduler.ReconcileWaiting = "0 0 2 * * *" // 2 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// AdminSessionTTL returns the lifetime of admin session tokens
func (c *Config) AdminSessionTTL() time.Duration {
	return time.Duration(c.JWT.AdminSessionExpiry) * time.Minute
}

// NotificationTimeout returns the per-request timeout for the email transport
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notification.TimeoutSeconds) * time.Second
}

// TrustedProxyNetworks parses TrustedProxies; a bare address becomes a single-host network.
func (s ServerConfig) TrustedProxyNetworks() ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, p := range s.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy: %q", p)
			}
			bits := 128
			if v4 := ip.To4(); v4 != nil {
				ip, bits = v4, 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
