package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration, loaded from environment
// variables with the ACTION_CREATOR_ prefix (optionally seeded from a
// config file).
type Config struct {
	ListenAddress string `mapstructure:"listen_address"`
	LogLevel      string `mapstructure:"log_level"`

	// Execution engine.
	ADESBaseURL           string `mapstructure:"ades_base_url"`
	ADESProcessesSegment  string `mapstructure:"ades_processes_segment"`
	ADESJobsSegment       string `mapstructure:"ades_jobs_segment"`
	ADESMaxAttempts       int    `mapstructure:"ades_max_attempts"`
	ADESTimeoutSeconds    int    `mapstructure:"ades_timeout_seconds"`
	ADESListJobsTimeoutS  int    `mapstructure:"ades_list_jobs_timeout_seconds"`
	FunctionRegistryHrefs map[string]string `mapstructure:"function_registry"`

	// Collaborating services.
	WorkspaceServicesURL string `mapstructure:"workspace_services_url"`
	STACBaseURL          string `mapstructure:"stac_base_url"`
	TokenEndpoint        string `mapstructure:"token_endpoint"`
	IntrospectionURL     string `mapstructure:"introspection_endpoint"`

	// Auth.
	JWTSecret string `mapstructure:"jwt_secret"`

	// Validation limits.
	MaxTasks     int     `mapstructure:"max_tasks"`
	AreaLimitKM2 float64 `mapstructure:"area_limit_km2"`

	// WebSocket polling.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`

	// Infrastructure.
	RedisURL string `mapstructure:"redis_url"`
	NATSURL  string `mapstructure:"nats_url"`

	// Janitor sweep; empty schedule disables it.
	JanitorSchedule  string   `mapstructure:"janitor_schedule"`
	JanitorMaxAgeHrs int      `mapstructure:"janitor_max_age_hours"`
	JanitorStatuses  []string `mapstructure:"janitor_statuses"`
	JanitorWorkspace string   `mapstructure:"janitor_workspace"`
}

// PollInterval returns the WebSocket polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// ADESTimeout returns the per-attempt engine timeout.
func (c *Config) ADESTimeout() time.Duration {
	return time.Duration(c.ADESTimeoutSeconds) * time.Second
}

// ADESListJobsTimeout returns the job-listing timeout.
func (c *Config) ADESListJobsTimeout() time.Duration {
	return time.Duration(c.ADESListJobsTimeoutS) * time.Second
}

// Load reads the configuration. configFile may be empty.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_address", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("ades_processes_segment", "processes")
	v.SetDefault("ades_jobs_segment", "jobs")
	v.SetDefault("ades_max_attempts", 3)
	v.SetDefault("ades_timeout_seconds", 30)
	v.SetDefault("ades_list_jobs_timeout_seconds", 120)
	v.SetDefault("max_tasks", 15)
	v.SetDefault("area_limit_km2", 1000.0)
	v.SetDefault("poll_interval_seconds", 5)
	v.SetDefault("janitor_max_age_hours", 24*30)
	v.SetDefault("janitor_statuses", []string{"failed"})

	// Keys without a meaningful default still need registering so
	// AutomaticEnv can populate them through Unmarshal.
	for _, key := range []string{
		"ades_base_url", "workspace_services_url", "stac_base_url",
		"token_endpoint", "introspection_endpoint", "jwt_secret",
		"redis_url", "nats_url", "janitor_schedule", "janitor_workspace",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("function_registry", map[string]string{})

	v.SetEnvPrefix("ACTION_CREATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ADESBaseURL == "" {
		return fmt.Errorf("ades_base_url is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if c.MaxTasks < 1 {
		return fmt.Errorf("max_tasks must be positive")
	}
	if c.PollIntervalSeconds < 1 {
		return fmt.Errorf("poll_interval_seconds must be positive")
	}
	return nil
}
