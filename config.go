package redisq

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds Queue Registry configuration. It is process-wide per queue:
// set by registration; RemoveQueue leaves it unchanged.
type Config struct {
	// Queue is the active queue name Q. Required before Submit.
	Queue string `yaml:"queue"`

	// ChunkSize is the maximum number of task indices per pushed chunk.
	// Default: 1.
	ChunkSize int `yaml:"chunkSize"`

	// Export lists extra symbol names to include in the envelope, beyond
	// auto-discovered free variables.
	Export []string `yaml:"export"`

	// Packages lists external packages/modules the worker must load
	// before executing the task body.
	Packages []string `yaml:"packages"`

	// Reduce enables two-level reduction. See reduce.go.
	Reduce Reduce `yaml:"-"`

	// FTInterval is the fault-tolerance polling period: the brpop timeout
	// on Q.out.J. Clamped to >= MinFTInterval.
	FTInterval time.Duration `yaml:"ftInterval"`

	// EnvelopeSizeLimit caps the serialized envelope.
	// Default: 500 MiB.
	EnvelopeSizeLimit int64 `yaml:"envelopeSizeLimit"`

	// Addr, Password, DB locate the backing store.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MinFTInterval is the floor imposed on the fault-tolerance polling
// period.
const MinFTInterval = 3 * time.Second

// DefaultFTInterval is the interval used when none is configured.
const DefaultFTInterval = 30 * time.Second

// DefaultEnvelopeSizeLimit is 500 MiB.
const DefaultEnvelopeSizeLimit = 500 * 1024 * 1024

// defaultConfig centralizes default values for Config. Applied both when
// NewRegistry is given no options and as the base LoadConfig starts from.
func defaultConfig() Config {
	return Config{
		ChunkSize:         1,
		Reduce:            ReduceNone(),
		FTInterval:        DefaultFTInterval,
		EnvelopeSizeLimit: DefaultEnvelopeSizeLimit,
		Addr:              "127.0.0.1:6379",
	}
}

// validateConfig performs the lightweight invariant checks: a positive
// chunk size and an ftInterval clamped to the floor.
func validateConfig(cfg *Config) error {
	if cfg.ChunkSize < 1 {
		return fmt.Errorf("%w: chunkSize must be >= 1, got %d", ErrInvalidConfig, cfg.ChunkSize)
	}
	if cfg.FTInterval < MinFTInterval {
		cfg.FTInterval = MinFTInterval
	}
	if cfg.EnvelopeSizeLimit <= 0 {
		cfg.EnvelopeSizeLimit = DefaultEnvelopeSizeLimit
	}
	return nil
}

// LoadConfig reads a YAML-shaped registry configuration from path, applying
// defaultConfig for any field the file omits. This is the ambient
// configuration surface a deployment uses to avoid hardcoding queue name,
// chunk size, and ftInterval into the caller's Go source.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("redisq: reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("redisq: parsing config %s: %w", path, err)
	}
	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
