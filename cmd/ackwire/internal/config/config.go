package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/core"
	"github.com/hasirciogluhq/ackwire/cmd/ackwire/internal/protocol"
)

// RuntimeEnvironment represents the execution environment
type RuntimeEnvironment string

const (
	RuntimeKubernetes RuntimeEnvironment = "kubernetes"
	RuntimeContainer  RuntimeEnvironment = "container"
	RuntimeVM         RuntimeEnvironment = "vm"
)

// TrustStoreMode represents where server certificates are looked up
type TrustStoreMode string

const (
	TrustStoreFile       TrustStoreMode = "file"
	TrustStoreKubernetes TrustStoreMode = "kubernetes"
	TrustStoreMemory     TrustStoreMode = "memory"
)

const defaultSecretSelector = "ackwire.io/trust-store=true"

// Config holds all application configuration
type Config struct {
	// Core
	Debug     bool
	LogFormat string

	// Runtime
	Runtime   RuntimeEnvironment
	Namespace string // Only for Kubernetes trust store

	// Endpoint
	ListenAddress string
	ListenPort    int
	TLSSubject    string // empty means plaintext

	// Framing
	ReadBufferSize     int
	ReadInitialTimeout time.Duration
	ReadIdleTimeout    time.Duration
	WriteTimeout       time.Duration
	MaxMessageSize     int
	AckPayload         string

	// Trust store
	TrustStoreMode           TrustStoreMode
	TrustStoreDir            string
	TrustStoreSecretSelector string
	KubeConfigPath           string
	KubeContext              string
	TLSAutoGenerate          bool // Generate self-signed if no certificate matches

	// Operations
	HealthServerPort    string // empty disables the health server
	MetricsEnabled      bool
	MetricsInterval     time.Duration
	ShutdownGracePeriod time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Core
		Debug:     getEnvBool("DEBUG", false),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		// Runtime - Auto-detect or explicit
		Runtime:   determineRuntime(),
		Namespace: determineNamespace(),

		// Endpoint
		ListenAddress: getEnv("LISTEN_ADDRESS", "0.0.0.0"),
		ListenPort:    getEnvInt("LISTEN_PORT", 8087),
		TLSSubject:    getEnv("TLS_SUBJECT", ""),

		// Framing
		ReadBufferSize:     getEnvInt("READ_BUFFER_SIZE", protocol.DefaultBufferSize),
		ReadInitialTimeout: getEnvDuration("READ_INITIAL_TIMEOUT", protocol.DefaultInitialTimeout),
		ReadIdleTimeout:    getEnvDuration("READ_IDLE_TIMEOUT", protocol.DefaultIdleTimeout),
		WriteTimeout:       getEnvDuration("WRITE_TIMEOUT", protocol.DefaultWriteTimeout),
		MaxMessageSize:     getEnvInt("MAX_MESSAGE_SIZE", protocol.DefaultMaxMessageSize),
		AckPayload:         getEnv("ACK_PAYLOAD", protocol.DefaultAck),

		// Trust store
		TrustStoreMode:           determineTrustStoreMode(),
		TrustStoreDir:            getEnv("TRUST_STORE_DIR", ""),
		TrustStoreSecretSelector: getEnv("TRUST_STORE_SECRET_SELECTOR", defaultSecretSelector),
		KubeConfigPath:           getEnv("KUBECONFIG", ""),
		KubeContext:              getEnv("KUBE_CONTEXT", ""),
		TLSAutoGenerate:          getEnvBool("TLS_AUTO_GENERATE", false),

		// Operations
		HealthServerPort:    os.Getenv("HEALTH_SERVER_PORT"),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", false),
		MetricsInterval:     getEnvDuration("METRICS_INTERVAL", 10*time.Second),
		ShutdownGracePeriod: getEnvDuration("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if _, set := os.LookupEnv("HEALTH_SERVER_PORT"); !set {
		cfg.HealthServerPort = "8080"
	}

	// Validation
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Endpoint returns the listener endpoint described by the configuration.
func (c *Config) Endpoint() core.Endpoint {
	return core.Endpoint{
		Address:    c.ListenAddress,
		Port:       c.ListenPort,
		TLSSubject: c.TLSSubject,
	}
}

// TLSEnabled reports whether the listener upgrades connections to TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSSubject != ""
}

// Framing returns the read/write options for the connection handler.
func (c *Config) Framing() protocol.Options {
	return protocol.Options{
		BufferSize:     c.ReadBufferSize,
		InitialTimeout: c.ReadInitialTimeout,
		IdleTimeout:    c.ReadIdleTimeout,
		WriteTimeout:   c.WriteTimeout,
		MaxMessageSize: c.MaxMessageSize,
	}
}

// validate ensures configuration is coherent
func (c *Config) validate() error {
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid LISTEN_PORT: %d (must be 0-65535)", c.ListenPort)
	}

	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("READ_BUFFER_SIZE must be positive, got %d", c.ReadBufferSize)
	}

	if c.ReadInitialTimeout <= 0 || c.ReadIdleTimeout <= 0 || c.WriteTimeout <= 0 {
		return fmt.Errorf("READ_INITIAL_TIMEOUT, READ_IDLE_TIMEOUT and WRITE_TIMEOUT must be positive")
	}

	if c.ReadIdleTimeout > c.ReadInitialTimeout {
		return fmt.Errorf("READ_IDLE_TIMEOUT (%s) must not exceed READ_INITIAL_TIMEOUT (%s)",
			c.ReadIdleTimeout, c.ReadInitialTimeout)
	}

	if c.MaxMessageSize < 0 {
		return fmt.Errorf("MAX_MESSAGE_SIZE must not be negative, got %d", c.MaxMessageSize)
	}

	if c.AckPayload == "" {
		return fmt.Errorf("ACK_PAYLOAD must not be empty")
	}

	if !contains([]string{"text", "json"}, strings.ToLower(c.LogFormat)) {
		return fmt.Errorf("unsupported LOG_FORMAT: %s (supported: text, json)", c.LogFormat)
	}

	// Trust store validation only if TLS is enabled
	if c.TLSEnabled() {
		if c.TrustStoreMode == TrustStoreFile && c.TrustStoreDir == "" {
			return fmt.Errorf("TRUST_STORE_DIR must be set when using the file trust store")
		}

		if c.TrustStoreMode == TrustStoreMemory && !c.TLSAutoGenerate {
			return fmt.Errorf("memory trust store starts empty and requires TLS_AUTO_GENERATE=true")
		}

		if c.TrustStoreMode == TrustStoreKubernetes && c.Runtime == RuntimeContainer && c.KubeConfigPath == "" {
			return fmt.Errorf("kubernetes trust store in container runtime requires KUBECONFIG path")
		}
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvDuration accepts Go duration strings ("250ms") or a bare number of
// milliseconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

func determineRuntime() RuntimeEnvironment {
	// Explicit runtime setting
	if runtime := os.Getenv("RUNTIME"); runtime != "" {
		switch strings.ToLower(runtime) {
		case "kubernetes", "k8s":
			return RuntimeKubernetes
		case "container", "docker":
			return RuntimeContainer
		case "vm", "virtual-machine", "bare-metal":
			return RuntimeVM
		}
	}

	// Auto-detect: Check if running in Kubernetes
	if _, err := os.Stat("/var/run/secrets/kubernetes.io/serviceaccount"); err == nil {
		return RuntimeKubernetes
	}

	// Auto-detect: Check if running in container
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return RuntimeContainer
	}

	return RuntimeVM
}

func determineNamespace() string {
	if ns := os.Getenv("NAMESPACE"); ns != "" {
		return ns
	}

	// Kubernetes downward API
	if ns := os.Getenv("POD_NAMESPACE"); ns != "" {
		return ns
	}

	// Read from service account (in-cluster)
	if data, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(data))
	}

	return "default"
}

func determineTrustStoreMode() TrustStoreMode {
	// Explicit mode
	if mode := os.Getenv("TRUST_STORE_MODE"); mode != "" {
		switch strings.ToLower(mode) {
		case "file", "filesystem":
			return TrustStoreFile
		case "kubernetes", "k8s", "secret":
			return TrustStoreKubernetes
		case "memory", "in-memory":
			return TrustStoreMemory
		}
	}

	// Auto-detect based on configuration
	if os.Getenv("TRUST_STORE_DIR") != "" {
		return TrustStoreFile
	}

	if determineRuntime() == RuntimeKubernetes {
		return TrustStoreKubernetes
	}

	return TrustStoreMemory
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
