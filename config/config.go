package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultEnvFile = ".env"

	// Lead sync HTTP calls per retry attempt: contact lookup and write, list
	// membership, form submission.
	syncCallsPerAttempt = 4

	// Single-shot calls after the retried steps: fallback form, deal, workflow.
	syncSingleCalls = 3

	// Retried steps that may each wait through the full backoff schedule.
	syncRetriedSteps = 3

	// Time left to encode and write the response once the pipeline is done.
	responseMargin = 5 * time.Second
)

// Config represents the complete runtime configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	HubSpot   HubSpotConfig   `mapstructure:"hubspot"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Deal      DealConfig      `mapstructure:"deal"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// HubSpotConfig identifies the single CRM account leads are sent to.
// Only AccessToken is needed for contact sync; the ids enable optional steps.
type HubSpotConfig struct {
	AccessToken      string        `mapstructure:"access_token"`
	PortalID         string        `mapstructure:"portal_id"`
	FormID           string        `mapstructure:"form_id"`
	CalculatorListID string        `mapstructure:"calculator_list_id"`
	WorkflowID       string        `mapstructure:"workflow_id"`
	APIBaseURL       string        `mapstructure:"api_base_url"`
	FormsBaseURL     string        `mapstructure:"forms_base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`

	// MetadataProperties lists the contact properties lead metadata may set.
	// Other metadata keys are dropped before reaching the CRM.
	MetadataProperties []string `mapstructure:"metadata_properties"`
}

// RetryConfig tunes retries of the contact, list and form steps.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// DealConfig holds the deal-creation heuristic.
type DealConfig struct {
	Threshold    float64 `mapstructure:"threshold"`
	CaptureRate  float64 `mapstructure:"capture_rate"`
	HorizonYears int     `mapstructure:"horizon_years"`
}

// CacheConfig selects the projection cache. An empty RedisAddr keeps the
// cache in memory.
type CacheConfig struct {
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl"`
}

type RateLimitConfig struct {
	Capacity int           `mapstructure:"capacity"`
	Refill   time.Duration `mapstructure:"refill"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// env maps every config key to the environment variable it is read from.
var env = map[string]string{
	"server.addr":                 "SERVER_ADDR",
	"server.read_timeout":         "SERVER_READ_TIMEOUT",
	"server.write_timeout":        "SERVER_WRITE_TIMEOUT",
	"server.idle_timeout":         "SERVER_IDLE_TIMEOUT",
	"server.shutdown_timeout":     "SERVER_SHUTDOWN_TIMEOUT",
	"hubspot.access_token":        "HUBSPOT_ACCESS_TOKEN",
	"hubspot.portal_id":           "HUBSPOT_PORTAL_ID",
	"hubspot.form_id":             "HUBSPOT_FORM_ID",
	"hubspot.calculator_list_id":  "HUBSPOT_CALCULATOR_LIST_ID",
	"hubspot.workflow_id":         "HUBSPOT_WORKFLOW_ID",
	"hubspot.metadata_properties": "HUBSPOT_METADATA_PROPERTIES",
	"hubspot.api_base_url":        "HUBSPOT_API_BASE_URL",
	"hubspot.forms_base_url":      "HUBSPOT_FORMS_BASE_URL",
	"hubspot.timeout":             "HUBSPOT_TIMEOUT",
	"retry.max_attempts":          "HUBSPOT_RETRY_MAX_ATTEMPTS",
	"retry.initial_backoff":       "HUBSPOT_RETRY_INITIAL_BACKOFF",
	"deal.threshold":              "DEAL_THRESHOLD",
	"deal.capture_rate":           "DEAL_CAPTURE_RATE",
	"deal.horizon_years":          "DEAL_HORIZON_YEARS",
	"cache.redis_addr":            "CACHE_REDIS_ADDR",
	"cache.ttl":                   "CACHE_TTL",
	"ratelimit.capacity":          "RATE_LIMIT_CAPACITY",
	"ratelimit.refill":            "RATE_LIMIT_REFILL",
	"log.level":                   "LOG_LEVEL",
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	cfg := Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		HubSpot: HubSpotConfig{
			APIBaseURL:   "https://api.hubapi.com",
			FormsBaseURL: "https://api.hsforms.com",
			Timeout:      10 * time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
		},
		Deal: DealConfig{
			Threshold:    50_000,
			CaptureRate:  0.25,
			HorizonYears: 3,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Capacity: 5,
			Refill:   time.Minute,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
	cfg.Server.WriteTimeout = cfg.MinWriteTimeout()
	return cfg
}

// LeadSyncBudget is the longest one lead submission can take against a CRM
// that never answers: every call runs into the HubSpot timeout and every
// retried step waits through all its backoffs.
func (c Config) LeadSyncBudget() time.Duration {
	attempts := c.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var backoff time.Duration
	for i := 0; i < attempts-1; i++ {
		backoff += c.Retry.InitialBackoff << i
	}
	calls := time.Duration(attempts*syncCallsPerAttempt + syncSingleCalls)
	return calls*c.HubSpot.Timeout + syncRetriedSteps*backoff
}

// MinWriteTimeout is the smallest server write timeout that still lets a lead
// submission deliver its result.
func (c Config) MinWriteTimeout() time.Duration {
	return c.LeadSyncBudget() + responseMargin
}

// SetDefaults registers Defaults() on v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	// Zero means derived from the HubSpot timeout and retry settings in Load.
	v.SetDefault("server.write_timeout", time.Duration(0))
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("hubspot.access_token", "")
	v.SetDefault("hubspot.portal_id", "")
	v.SetDefault("hubspot.form_id", "")
	v.SetDefault("hubspot.calculator_list_id", "")
	v.SetDefault("hubspot.workflow_id", "")
	v.SetDefault("hubspot.metadata_properties", []string{})
	v.SetDefault("hubspot.api_base_url", d.HubSpot.APIBaseURL)
	v.SetDefault("hubspot.forms_base_url", d.HubSpot.FormsBaseURL)
	v.SetDefault("hubspot.timeout", d.HubSpot.Timeout)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_backoff", d.Retry.InitialBackoff)

	v.SetDefault("deal.threshold", d.Deal.Threshold)
	v.SetDefault("deal.capture_rate", d.Deal.CaptureRate)
	v.SetDefault("deal.horizon_years", d.Deal.HorizonYears)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.ttl", d.Cache.TTL)

	v.SetDefault("ratelimit.capacity", d.RateLimit.Capacity)
	v.SetDefault("ratelimit.refill", d.RateLimit.Refill)

	v.SetDefault("log.level", d.Log.Level)
}

// Option customises Load.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile    string
	configFile string
}

// WithEnvFile overrides the .env file read before the environment.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithConfigFile reads an additional YAML/TOML/JSON config file. Environment
// variables still take precedence over it.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) { o.configFile = path }
}

// Load builds the configuration from defaults, an optional config file, an
// optional .env file and the process environment, in increasing precedence.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		opt(&options)
	}

	// godotenv never overrides variables that are already set.
	if options.envFile != "" {
		if err := godotenv.Load(options.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", options.envFile, err)
		}
	}

	v := viper.New()
	SetDefaults(v)
	for key, name := range env {
		if err := v.BindEnv(key, name); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if options.configFile != "" {
		v.SetConfigFile(options.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.HubSpot.AccessToken = strings.TrimSpace(cfg.HubSpot.AccessToken)
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = cfg.MinWriteTimeout()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidationError lists the fields that hold unusable values.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: invalid fields [%s]", strings.Join(e.Fields, ", "))
}

// Validate rejects values the services cannot run with. Missing HubSpot
// identifiers are allowed; they only disable optional steps.
func (c Config) Validate() error {
	var fields []string
	if strings.TrimSpace(c.Server.Addr) == "" {
		fields = append(fields, "server.addr")
	}
	if c.HubSpot.Timeout <= 0 {
		fields = append(fields, "hubspot.timeout")
	}
	if c.Server.WriteTimeout < c.MinWriteTimeout() {
		fields = append(fields, "server.write_timeout")
	}
	if c.Retry.MaxAttempts < 1 {
		fields = append(fields, "retry.max_attempts")
	}
	if c.Retry.InitialBackoff < 0 {
		fields = append(fields, "retry.initial_backoff")
	}
	if c.Deal.Threshold < 0 {
		fields = append(fields, "deal.threshold")
	}
	if c.Deal.CaptureRate <= 0 || c.Deal.CaptureRate > 1 {
		fields = append(fields, "deal.capture_rate")
	}
	if c.Deal.HorizonYears < 1 {
		fields = append(fields, "deal.horizon_years")
	}
	if c.RateLimit.Capacity < 1 {
		fields = append(fields, "ratelimit.capacity")
	}
	if c.RateLimit.Refill <= 0 {
		fields = append(fields, "ratelimit.refill")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
