package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yayitinyu/RelayCat/internal/pkg/validate"
)

type Config struct {
	Debug     bool            `yaml:"debug"`
	Log       LogConfig       `yaml:"log"`
	Bot       BotConfig       `yaml:"bot"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Storage   StorageConfig   `yaml:"storage"`
	Routes    RoutesConfig    `yaml:"routes"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tokens    TokenConfig     `yaml:"tokens"`
	Captcha   CaptchaConfig   `yaml:"captcha"`
	BadWords  BadWordsConfig  `yaml:"bad_words"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type BotConfig struct {
	Token             string        `yaml:"token"`
	Username          string        `yaml:"username"`
	AdminID           int64         `yaml:"admin_id"`
	AllowBotInitiated bool          `yaml:"allow_bot_initiated"`
	APITimeout        time.Duration `yaml:"api_timeout"`
}

type WebhookConfig struct {
	Addr          string        `yaml:"addr"`
	Secret        string        `yaml:"secret"`
	EnforceSecret bool          `yaml:"enforce_secret"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

type StorageConfig struct {
	DataDir      string `yaml:"data_dir"`
	VerifiedFile string `yaml:"verified_file"`
	BannedFile   string `yaml:"banned_file"`
	RouteFile    string `yaml:"route_file"`
	RateFile     string `yaml:"rate_file"`
}

type RoutesConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type RateLimitConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Window    time.Duration `yaml:"window"`
	MaxEvents int           `yaml:"max_events"`
}

type TokenConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
	Leeway time.Duration `yaml:"leeway"`
}

type CaptchaConfig struct {
	SiteKey      string        `yaml:"site_key"`
	SecretKey    string        `yaml:"secret_key"`
	VerifyURL    string        `yaml:"verify_url"`
	Addr         string        `yaml:"addr"`
	Timeout      time.Duration `yaml:"timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type BadWordsConfig struct {
	File       string `yaml:"file"`
	IgnoreCase bool   `yaml:"ignore_case"`
	Wildcard   bool   `yaml:"wildcard"`
	Regex      bool   `yaml:"regex"`
}

func Default() Config {
	return Config{
		Debug: false,
		Log:   LogConfig{Level: "info"},
		Bot: BotConfig{
			AllowBotInitiated: false,
			APITimeout:        15 * time.Second,
		},
		Webhook: WebhookConfig{
			Addr:          ":8080",
			EnforceSecret: true,
			ReadTimeout:   5 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "botdata",
		},
		Routes: RoutesConfig{
			TTL:        7 * 24 * time.Hour,
			MaxEntries: 20000,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Window:    10 * time.Second,
			MaxEvents: 30,
		},
		Tokens: TokenConfig{
			TTL:    10 * time.Minute,
			Leeway: 5 * time.Minute,
		},
		Captcha: CaptchaConfig{
			Addr:         ":8081",
			Timeout:      10 * time.Second,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  30 * time.Second,
		},
		BadWords: BadWordsConfig{
			IgnoreCase: true,
			Wildcard:   true,
			Regex:      false,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromYAML(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}

	cfg.applyStorageDefaults()

	return cfg, nil
}

// ValidateWebhook checks the settings the webhook process cannot start
// without.
func (c Config) ValidateWebhook() error {
	if !validate.Required(c.Bot.Token) {
		return errors.New("bot token is required")
	}
	if !validate.PositiveID(c.Bot.AdminID) {
		return errors.New("admin id is required")
	}
	if !validate.Required(c.Tokens.Secret) {
		return errors.New("token secret is required")
	}
	if !validate.Required(c.Captcha.VerifyURL) {
		return errors.New("verify url is required")
	}
	if c.Webhook.EnforceSecret && !validate.Required(c.Webhook.Secret) {
		return errors.New("webhook secret is required when enforcement is on")
	}
	return nil
}

// ValidateVerify checks the settings the verification page cannot start
// without.
func (c Config) ValidateVerify() error {
	if !validate.Required(c.Tokens.Secret) {
		return errors.New("token secret is required")
	}
	if !validate.Required(c.Captcha.SiteKey) {
		return errors.New("captcha site key is required")
	}
	if !validate.Required(c.Captcha.SecretKey) {
		return errors.New("captcha secret key is required")
	}
	if !validate.Required(c.Bot.Username) {
		return errors.New("bot username is required")
	}
	return nil
}

// applyStorageDefaults resolves per-store file paths left empty after YAML
// and env overrides against the data directory.
func (c *Config) applyStorageDefaults() {
	if c.Storage.VerifiedFile == "" {
		c.Storage.VerifiedFile = filepath.Join(c.Storage.DataDir, "verified_users.json")
	}
	if c.Storage.BannedFile == "" {
		c.Storage.BannedFile = filepath.Join(c.Storage.DataDir, "banned_users.json")
	}
	if c.Storage.RouteFile == "" {
		c.Storage.RouteFile = filepath.Join(c.Storage.DataDir, "routes.json")
	}
	if c.Storage.RateFile == "" {
		c.Storage.RateFile = filepath.Join(c.Storage.DataDir, "rate_limit.json")
	}
	if c.BadWords.File == "" {
		c.BadWords.File = filepath.Join(c.Storage.DataDir, "bad_words.txt")
	}
}

func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("unmarshal config yaml: %w", err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := overrideBool("RELAYCAT_DEBUG", &cfg.Debug); err != nil {
		return err
	}
	if v := os.Getenv("RELAYCAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if v := os.Getenv("RELAYCAT_BOT_TOKEN"); v != "" {
		cfg.Bot.Token = v
	}
	if v := os.Getenv("RELAYCAT_BOT_USERNAME"); v != "" {
		cfg.Bot.Username = v
	}
	if err := overrideInt64("RELAYCAT_ADMIN_ID", &cfg.Bot.AdminID); err != nil {
		return err
	}
	if err := overrideBool("RELAYCAT_ALLOW_BOT_INITIATED", &cfg.Bot.AllowBotInitiated); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_BOT_API_TIMEOUT", &cfg.Bot.APITimeout); err != nil {
		return err
	}

	if v := os.Getenv("RELAYCAT_WEBHOOK_ADDR"); v != "" {
		cfg.Webhook.Addr = v
	}
	if v := os.Getenv("RELAYCAT_TG_WEBHOOK_SECRET"); v != "" {
		cfg.Webhook.Secret = v
	}
	if err := overrideBool("RELAYCAT_ENFORCE_WEBHOOK_SECRET", &cfg.Webhook.EnforceSecret); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_WEBHOOK_READ_TIMEOUT", &cfg.Webhook.ReadTimeout); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_WEBHOOK_WRITE_TIMEOUT", &cfg.Webhook.WriteTimeout); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_WEBHOOK_IDLE_TIMEOUT", &cfg.Webhook.IdleTimeout); err != nil {
		return err
	}

	if v := os.Getenv("RELAYCAT_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("RELAYCAT_VERIFIED_USERS_FILE"); v != "" {
		cfg.Storage.VerifiedFile = v
	}
	if v := os.Getenv("RELAYCAT_BANNED_USERS_FILE"); v != "" {
		cfg.Storage.BannedFile = v
	}
	if v := os.Getenv("RELAYCAT_ROUTE_MAP_FILE"); v != "" {
		cfg.Storage.RouteFile = v
	}
	if v := os.Getenv("RELAYCAT_RATE_LIMIT_FILE"); v != "" {
		cfg.Storage.RateFile = v
	}

	if err := overrideDuration("RELAYCAT_ROUTE_TTL", &cfg.Routes.TTL); err != nil {
		return err
	}
	if err := overrideInt("RELAYCAT_ROUTE_MAX_ENTRIES", &cfg.Routes.MaxEntries); err != nil {
		return err
	}

	if err := overrideBool("RELAYCAT_RATE_LIMIT_ENABLED", &cfg.RateLimit.Enabled); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_RATE_LIMIT_WINDOW", &cfg.RateLimit.Window); err != nil {
		return err
	}
	if err := overrideInt("RELAYCAT_RATE_LIMIT_MAX_EVENTS", &cfg.RateLimit.MaxEvents); err != nil {
		return err
	}

	if v := os.Getenv("RELAYCAT_SHARED_JWT_SECRET"); v != "" {
		cfg.Tokens.Secret = v
	}
	if err := overrideDuration("RELAYCAT_VERIFICATION_TOKEN_TTL", &cfg.Tokens.TTL); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_JWT_LEEWAY", &cfg.Tokens.Leeway); err != nil {
		return err
	}

	if v := os.Getenv("RELAYCAT_RECAPTCHA_SITE_KEY"); v != "" {
		cfg.Captcha.SiteKey = v
	}
	if v := os.Getenv("RELAYCAT_RECAPTCHA_SECRET_KEY"); v != "" {
		cfg.Captcha.SecretKey = v
	}
	if v := os.Getenv("RELAYCAT_VERIFY_URL"); v != "" {
		cfg.Captcha.VerifyURL = v
	}
	if v := os.Getenv("RELAYCAT_VERIFY_ADDR"); v != "" {
		cfg.Captcha.Addr = v
	}
	if err := overrideDuration("RELAYCAT_RECAPTCHA_TIMEOUT", &cfg.Captcha.Timeout); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_VERIFY_READ_TIMEOUT", &cfg.Captcha.ReadTimeout); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_VERIFY_WRITE_TIMEOUT", &cfg.Captcha.WriteTimeout); err != nil {
		return err
	}
	if err := overrideDuration("RELAYCAT_VERIFY_IDLE_TIMEOUT", &cfg.Captcha.IdleTimeout); err != nil {
		return err
	}

	if v := os.Getenv("RELAYCAT_BAD_WORDS_FILE"); v != "" {
		cfg.BadWords.File = v
	}
	if err := overrideBool("RELAYCAT_BAD_WORDS_IGNORE_CASE", &cfg.BadWords.IgnoreCase); err != nil {
		return err
	}
	if err := overrideBool("RELAYCAT_BAD_WORDS_ENABLE_WILDCARD", &cfg.BadWords.Wildcard); err != nil {
		return err
	}
	if err := overrideBool("RELAYCAT_BAD_WORDS_ENABLE_REGEX", &cfg.BadWords.Regex); err != nil {
		return err
	}

	return nil
}

func overrideDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s duration: %w", key, err)
	}
	*target = d
	return nil
}

func overrideInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideInt64(key string, target *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s int: %w", key, err)
	}
	*target = n
	return nil
}

func overrideBool(key string, target *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s bool: %w", key, err)
	}
	*target = b
	return nil
}
