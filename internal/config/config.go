package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port    int    `envconfig:"port" default:"5000"`
	GinMode string `envconfig:"gin_mode" default:"release"`

	// ClientURL is the browser origin allowed by CORS.
	ClientURL string `envconfig:"client_url" default:"http://localhost:5173"`

	JWTSecret          string `envconfig:"jwt_secret"`
	TokenExpirySeconds int    `envconfig:"token_expiry_seconds" default:"604800"`

	// DatabaseURL selects the postgres-backed store; when empty the server
	// runs on the in-memory store.
	DatabaseURL string `envconfig:"database_url"`

	// Mailgun is preferred for code delivery when configured; SMTP is the
	// fallback.
	MailgunDomain string `envconfig:"mg_domain"`
	MailgunAPIKey string `envconfig:"mg_public_api_key"`

	SMTPHost string `envconfig:"smtp_host"`
	SMTPPort int    `envconfig:"smtp_port" default:"587"`
	SMTPUser string `envconfig:"smtp_user"`
	SMTPPass string `envconfig:"smtp_pass"`
	MailFrom string `envconfig:"mail_from" default:"no-reply@messenger.local"`

	CloudName    string `envconfig:"cloudinary_cloud_name"`
	CloudAPIKey  string `envconfig:"cloudinary_api_key"`
	CloudSecret  string `envconfig:"cloudinary_api_secret"`
	UploadFolder string `envconfig:"cloudinary_upload_folder" default:"messenger_uploads"`

	TLSCertFile string `envconfig:"tls_cert_file"`
	TLSKeyFile  string `envconfig:"tls_key_file"`
}

func (c Config) TokenExpiry() time.Duration {
	return time.Duration(c.TokenExpirySeconds) * time.Second
}

// Load reads .env (outside release mode) and processes MESSENGER_* variables.
func Load() (*Config, error) {
	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	if err := envconfig.Process("messenger", c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("MESSENGER_JWT_SECRET is required")
	}
	if c.TokenExpirySeconds <= 0 {
		return fmt.Errorf("invalid token expiry %d", c.TokenExpirySeconds)
	}
	return nil
}
