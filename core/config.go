package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		SessionCookieName         string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
		LoginRateLimit            int
		LoginRateWindow           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	EmailConfig struct {
		Backend        string // console, sendgrid, smtp
		SendgridAPIKey string
		SMTPHost       string
		SMTPPort       int
		SMTPUser       string
		SMTPPassword   string
	}

	StorageConfig struct {
		Backend          string // local, b2
		MediaRoot        string
		MaxUploadSize    int64
		B2AccountID      string
		B2ApplicationKey string
		B2Bucket         string
	}

	RedisConfig struct {
		Addr     string // empty: in-memory rate limiting
		Password string
		DB       int
	}

	LogConfig struct {
		Level string
		JSON  bool
	}

	Config struct {
		AppName                   string
		Env                       string
		Build                     string
		Debug                     bool
		TestMode                  bool
		SecretKey                 string
		FrontendBaseURL           string
		DefaultFromName           string
		DefaultFromAddress        string
		PasswordResetTimeoutDelta time.Duration
		RollbarToken              string

		Server   ServerConfig
		Database DatabaseConfig
		Email    EmailConfig
		Storage  StorageConfig
		Redis    RedisConfig
		Log      LogConfig
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

func (c Config) DefaultFromEmail() mail.Address {
	return mail.Address{Name: c.DefaultFromName, Address: c.DefaultFromAddress}
}

// NewConfig loads the app configuration from the environment.
// ENV selects the environment (DEV by default, TEST, QA, PROD) and is used as prefix for env vars:
// i.e: DEV_DATABASE_HOST. A `config/.env.<env>` file is loaded first when it exists.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	loadDotEnv(env)

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, env)

	return &Config{
		AppName:                   v.GetString("app_name"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("test_mode"),
		SecretKey:                 v.GetString("secret_key"),
		FrontendBaseURL:           v.GetString("frontend_base_url"),
		DefaultFromName:           v.GetString("default_from_name"),
		DefaultFromAddress:        v.GetString("default_from_email"),
		PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
		RollbarToken:              v.GetString("rollbar_token"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debug_host"),
			SessionCookieName:         v.GetString("server.session_cookie_name"),
			JWTExpirationDelta:        v.GetDuration("server.jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwt_refresh_expiration_delta"),
			ShutdownTimeout:           v.GetDuration("server.shutdown_timeout"),
			LoginRateLimit:            v.GetInt("server.login_rate_limit"),
			LoginRateWindow:           v.GetDuration("server.login_rate_window"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			DisableTLS:    v.GetBool("database.disable_tls"),
		},
		Email: EmailConfig{
			Backend:        v.GetString("email.backend"),
			SendgridAPIKey: v.GetString("email.sendgrid_api_key"),
			SMTPHost:       v.GetString("email.smtp_host"),
			SMTPPort:       v.GetInt("email.smtp_port"),
			SMTPUser:       v.GetString("email.smtp_user"),
			SMTPPassword:   v.GetString("email.smtp_password"),
		},
		Storage: StorageConfig{
			Backend:          v.GetString("storage.backend"),
			MediaRoot:        v.GetString("storage.media_root"),
			MaxUploadSize:    v.GetInt64("storage.max_upload_size"),
			B2AccountID:      v.GetString("storage.b2_account_id"),
			B2ApplicationKey: v.GetString("storage.b2_application_key"),
			B2Bucket:         v.GetString("storage.b2_bucket"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
			JSON:  v.GetBool("log.json"),
		},
	}
}

func setDefaults(v *viper.Viper, env string) {
	v.SetTypeByDefaultValue(true)

	v.SetDefault("app_name", "Reportal")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("secret_key", "x9!k2c$w@rz&0m3f)l8p^qh7+ty5#d1e*vn4(sj6_ua")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_name", "Reportal")
	v.SetDefault("default_from_email", "noreply@reportal.local")
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)
	v.SetDefault("rollbar_token", "")

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debug_host", "0.0.0.0:4000")
	v.SetDefault("server.session_cookie_name", "reportal_session")
	v.SetDefault("server.jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration_delta", 4*time.Hour)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.login_rate_limit", 10)
	v.SetDefault("server.login_rate_window", 15*time.Minute)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "reportal")
	v.SetDefault("database.user", "reportal")
	v.SetDefault("database.password", "reportal")
	v.SetDefault("database.admin_user", "postgres")
	v.SetDefault("database.admin_password", "postgres")
	v.SetDefault("database.disable_tls", env == "DEV" || env == "TEST")

	v.SetDefault("email.backend", "console")
	v.SetDefault("email.sendgrid_api_key", "")
	v.SetDefault("email.smtp_host", "localhost")
	v.SetDefault("email.smtp_port", 587)
	v.SetDefault("email.smtp_user", "")
	v.SetDefault("email.smtp_password", "")

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.media_root", "media")
	v.SetDefault("storage.max_upload_size", int64(5*1024*1024))
	v.SetDefault("storage.b2_account_id", "")
	v.SetDefault("storage.b2_application_key", "")
	v.SetDefault("storage.b2_bucket", "")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", env != "DEV" && env != "TEST")
}

// loadDotEnv loads `config/.env.<env>` if it exists (ignored if it does not).
// CONFIG_DIR overrides the directory looked up.
func loadDotEnv(env string) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	path := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			log.Fatalf("config.godotenv(%s): %v", path, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", path, err)
	}
}
