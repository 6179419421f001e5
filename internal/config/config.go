package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edvin/svcctl/internal/model"
)

type Config struct {
	// ServiceName is attached to every log line.
	ServiceName string

	ControlPlaneURL        string
	ControlPlaneAPIVersion int
	ControlPlaneUsername   string
	ControlPlanePassword   string

	LogLevel       string
	HTTPListenAddr string
	MetricsAddr    string
	// DatabaseURL enables the run ledger when set.
	DatabaseURL string

	ControlPlaneTLS TLSFiles

	TemporalAddress string
	TemporalTLS     TLSFiles
	TaskQueue       string

	// NotifyWebhookURL receives failed reconciliations when set.
	NotifyWebhookURL string
	NotifyTemplate   string

	SettleDelay  time.Duration
	PollInterval time.Duration
	StartTimeout time.Duration
	StopTimeout  time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:          getEnv("SERVICE_NAME", "svcctl"),
		ControlPlaneURL:      getEnv("CM_API_URL", ""),
		ControlPlaneUsername: getEnv("CM_USERNAME", "admin"),
		ControlPlanePassword: getEnv("CM_PASSWORD", ""),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		HTTPListenAddr:       getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9090"),
		DatabaseURL:          getEnv("DATABASE_URL", ""),
		TemporalAddress:      getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TaskQueue:            getEnv("TASK_QUEUE", "svcctl-reconcile"),
		NotifyWebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
		NotifyTemplate:       getEnv("NOTIFY_TEMPLATE", "generic"),
		TemporalTLS: TLSFiles{
			Cert:       getEnv("TEMPORAL_TLS_CERT", ""),
			Key:        getEnv("TEMPORAL_TLS_KEY", ""),
			CACert:     getEnv("TEMPORAL_TLS_CA_CERT", ""),
			ServerName: getEnv("TEMPORAL_TLS_SERVER_NAME", ""),
		},
		ControlPlaneTLS: TLSFiles{
			CACert:             getEnv("CM_TLS_CA_CERT", ""),
			InsecureSkipVerify: getEnv("CM_TLS_INSECURE", "") == "true",
		},
	}

	var err error
	if cfg.ControlPlaneAPIVersion, err = getEnvInt("CM_API_VERSION", 19); err != nil {
		return nil, err
	}
	if cfg.SettleDelay, err = getEnvDuration("SETTLE_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getEnvDuration("POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.StartTimeout, err = getEnvDuration("START_TIMEOUT", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.StopTimeout, err = getEnvDuration("STOP_TIMEOUT", 300*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the settings a component needs are present.
// Components: "api", "worker", "cli".
func (c *Config) Validate(component string) error {
	var missing []string
	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch component {
	case "api":
		require(c.TemporalAddress, "TEMPORAL_ADDRESS")
		require(c.HTTPListenAddr, "HTTP_LISTEN_ADDR")
		require(c.TaskQueue, "TASK_QUEUE")
	case "worker":
		require(c.TemporalAddress, "TEMPORAL_ADDRESS")
		require(c.TaskQueue, "TASK_QUEUE")
	case "cli":
	default:
		return fmt.Errorf("unknown component %q", component)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if (c.TemporalTLS.Cert == "") != (c.TemporalTLS.Key == "") {
		return fmt.Errorf("TEMPORAL_TLS_CERT and TEMPORAL_TLS_KEY must both be set")
	}
	switch c.NotifyTemplate {
	case "", "generic", "slack":
	default:
		return fmt.Errorf("NOTIFY_TEMPLATE must be generic or slack, got %q", c.NotifyTemplate)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.SettleDelay < 0 {
		return fmt.Errorf("SETTLE_DELAY must not be negative")
	}
	return nil
}

// Endpoint returns the default control-plane endpoint. Requests may
// override any field.
func (c *Config) Endpoint() model.Endpoint {
	return model.Endpoint{
		URL:        c.ControlPlaneURL,
		APIVersion: c.ControlPlaneAPIVersion,
		Username:   c.ControlPlaneUsername,
		Password:   c.ControlPlanePassword,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
