package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Required values are enforced by must(); optional
// integrations (mailing-list sync, Resend) stay empty when unconfigured and
// callers are expected to skip them.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret      string // secret used to sign admin JWTs
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for the seeded admin password
	AdminEmail     string // seeded admin account email
	AdminPassword  string // seeded admin account password (hashed at boot)

	SiteURL      string // public marketing-site URL, target of link redirects
	PublicAPIURL string // externally reachable base URL of this API, used in emailed links
	OpsEmail     string // operations mailbox receiving internal signup notices

	Mail     MailConfig     // email delivery provider settings
	ListSync ListSyncConfig // optional external mailing-list provider
}

// MailConfig selects and configures the delivery provider. When ResendKey
// is set the Resend HTTP API is used, otherwise plain SMTP.
type MailConfig struct {
	Enabled        bool   // master switch; when false sends become no-ops
	SMTPHost       string // SMTP server host
	SMTPPort       int    // SMTP server port
	SMTPUser       string // SMTP auth user
	SMTPPass       string // SMTP auth password
	ResendKey      string // Resend API key (takes precedence over SMTP)
	FromInfo       string // sender for internal/operational notices
	FromAccounts   string // sender for account-style mail (unsubscribe links)
	FromNewsletter string // sender for subscriber-facing newsletter mail
}

// ListSyncConfig points at the external mailing-list provider. The
// integration is skipped entirely when APIURL or APIKey is empty.
type ListSyncConfig struct {
	APIURL string // provider base URL
	APIKey string // provider API key
	ListID string // audience/list identifier to register members on
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:  must("APP_ENV"),
		Port: must("APP_PORT"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"), // empty allowed
		DBHost: must("DB_HOST"),
		DBPort: must("DB_PORT"),
		DBName: must("DB_NAME"),

		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),
		AdminEmail:     must("ADMIN_EMAIL"),
		AdminPassword:  must("ADMIN_PASSWORD"),

		SiteURL:      must("SITE_URL"),
		PublicAPIURL: must("PUBLIC_API_URL"),
		OpsEmail:     must("OPS_EMAIL"),

		Mail: MailConfig{
			Enabled:        envBool("MAIL_ENABLED", true),
			SMTPHost:       os.Getenv("SMTP_HOST"),
			SMTPPort:       envInt("SMTP_PORT", 587),
			SMTPUser:       os.Getenv("SMTP_USER"),
			SMTPPass:       os.Getenv("SMTP_PASS"),
			ResendKey:      os.Getenv("RESEND_API_KEY"),
			FromInfo:       envStr("MAIL_FROM_INFO", "info@lumenworks.dev"),
			FromAccounts:   envStr("MAIL_FROM_ACCOUNTS", "accounts@lumenworks.dev"),
			FromNewsletter: envStr("MAIL_FROM_NEWSLETTER", "newsletter@lumenworks.dev"),
		},
		ListSync: ListSyncConfig{
			APIURL: os.Getenv("LIST_SYNC_API_URL"),
			APIKey: os.Getenv("LIST_SYNC_API_KEY"),
			ListID: os.Getenv("LIST_SYNC_LIST_ID"),
		},
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}
