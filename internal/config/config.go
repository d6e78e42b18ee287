// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/coherence/internal/engine"
	"github.com/aristath/coherence/internal/modules/evolution"
	"github.com/aristath/coherence/internal/modules/hamiltonian"
	"github.com/aristath/coherence/internal/modules/lindblad"
)

// Config holds application configuration
type Config struct {
	DataDir             string // Base directory for the run database (always absolute)
	LogLevel            string
	Port                int
	DevMode             bool
	Workers             int
	RequestTimeout      time.Duration
	CalibrationSchedule string // cron schedule with seconds field, empty disables calibration
	Physics             *PhysicsConfig
}

// PhysicsConfig holds the numerical and physical parameters of the engine
type PhysicsConfig struct {
	BaseTimeStep float64 // seconds
	MaxSteps     int

	TraceTolerance       float64
	HermiticityTolerance float64
	PSDTolerance         float64

	ReferenceFrequency   float64 // Hz
	CouplingFrequency    float64 // Hz
	LongRangeProbability float64
	LongRangeScale       float64

	Temperature          float64 // K
	AmplitudeDampingRate float64 // s⁻¹
	DephasingRate        float64 // s⁻¹
	NoiseRate            float64 // s⁻¹
	NoiseOperators       int
	NoiseDensity         float64

	Seed uint64

	ChannelDissipators bool
	ChannelRate        float64 // s⁻¹
}

// ToEngineConfig converts the flat physics configuration into engine.Config
func (p *PhysicsConfig) ToEngineConfig() engine.Config {
	return engine.Config{
		Integrator: evolution.Config{
			BaseTimeStep: p.BaseTimeStep,
			MaxSteps:     p.MaxSteps,
		},
		Tolerances: evolution.Tolerances{
			Trace:       p.TraceTolerance,
			Hermiticity: p.HermiticityTolerance,
			Positivity:  p.PSDTolerance,
		},
		Hamiltonian: hamiltonian.Params{
			ReferenceFrequency:   p.ReferenceFrequency,
			CouplingFrequency:    p.CouplingFrequency,
			LongRangeProbability: p.LongRangeProbability,
			LongRangeScale:       p.LongRangeScale,
			Seed:                 p.Seed,
		},
		Lindblad: lindblad.Params{
			Temperature:          p.Temperature,
			AmplitudeDampingRate: p.AmplitudeDampingRate,
			DephasingRate:        p.DephasingRate,
			NoiseRate:            p.NoiseRate,
			NoiseOperators:       p.NoiseOperators,
			NoiseDensity:         p.NoiseDensity,
			Seed:                 p.Seed,
		},
		ChannelDissipators: p.ChannelDissipators,
		ChannelRate:        p.ChannelRate,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("COHERENCE_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		LogLevel:            getEnv("COHERENCE_LOG_LEVEL", "info"),
		Port:                getEnvAsInt("COHERENCE_PORT", 8010),
		DevMode:             getEnvAsBool("COHERENCE_DEV_MODE", false),
		Workers:             getEnvAsInt("COHERENCE_WORKERS", 4),
		RequestTimeout:      getEnvAsDuration("COHERENCE_REQUEST_TIMEOUT", 2*time.Minute),
		CalibrationSchedule: getEnv("COHERENCE_CALIBRATION_SCHEDULE", "0 0 * * * *"),
		Physics:             loadPhysicsConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewPhysicsConfig flattens an engine configuration
func NewPhysicsConfig(c engine.Config) *PhysicsConfig {
	return &PhysicsConfig{
		BaseTimeStep:         c.Integrator.BaseTimeStep,
		MaxSteps:             c.Integrator.MaxSteps,
		TraceTolerance:       c.Tolerances.Trace,
		HermiticityTolerance: c.Tolerances.Hermiticity,
		PSDTolerance:         c.Tolerances.Positivity,
		ReferenceFrequency:   c.Hamiltonian.ReferenceFrequency,
		CouplingFrequency:    c.Hamiltonian.CouplingFrequency,
		LongRangeProbability: c.Hamiltonian.LongRangeProbability,
		LongRangeScale:       c.Hamiltonian.LongRangeScale,
		Temperature:          c.Lindblad.Temperature,
		AmplitudeDampingRate: c.Lindblad.AmplitudeDampingRate,
		DephasingRate:        c.Lindblad.DephasingRate,
		NoiseRate:            c.Lindblad.NoiseRate,
		NoiseOperators:       c.Lindblad.NoiseOperators,
		NoiseDensity:         c.Lindblad.NoiseDensity,
		Seed:                 c.Lindblad.Seed,
		ChannelDissipators:   c.ChannelDissipators,
		ChannelRate:          c.ChannelRate,
	}
}

func loadPhysicsConfig() *PhysicsConfig {
	d := NewPhysicsConfig(engine.DefaultConfig())
	return &PhysicsConfig{
		BaseTimeStep:         getEnvAsFloat("COHERENCE_BASE_TIME_STEP", d.BaseTimeStep),
		MaxSteps:             getEnvAsInt("COHERENCE_MAX_STEPS", d.MaxSteps),
		TraceTolerance:       getEnvAsFloat("COHERENCE_TRACE_TOLERANCE", d.TraceTolerance),
		HermiticityTolerance: getEnvAsFloat("COHERENCE_HERMITICITY_TOLERANCE", d.HermiticityTolerance),
		PSDTolerance:         getEnvAsFloat("COHERENCE_PSD_TOLERANCE", d.PSDTolerance),
		ReferenceFrequency:   getEnvAsFloat("COHERENCE_REFERENCE_FREQUENCY", d.ReferenceFrequency),
		CouplingFrequency:    getEnvAsFloat("COHERENCE_COUPLING_FREQUENCY", d.CouplingFrequency),
		LongRangeProbability: getEnvAsFloat("COHERENCE_LONG_RANGE_PROBABILITY", d.LongRangeProbability),
		LongRangeScale:       getEnvAsFloat("COHERENCE_LONG_RANGE_SCALE", d.LongRangeScale),
		Temperature:          getEnvAsFloat("COHERENCE_TEMPERATURE", d.Temperature),
		AmplitudeDampingRate: getEnvAsFloat("COHERENCE_AMPLITUDE_DAMPING_RATE", d.AmplitudeDampingRate),
		DephasingRate:        getEnvAsFloat("COHERENCE_DEPHASING_RATE", d.DephasingRate),
		NoiseRate:            getEnvAsFloat("COHERENCE_NOISE_RATE", d.NoiseRate),
		NoiseOperators:       getEnvAsInt("COHERENCE_NOISE_OPERATORS", d.NoiseOperators),
		NoiseDensity:         getEnvAsFloat("COHERENCE_NOISE_DENSITY", d.NoiseDensity),
		Seed:                 uint64(getEnvAsInt("COHERENCE_SEED", int(d.Seed))),
		ChannelDissipators:   getEnvAsBool("COHERENCE_CHANNEL_DISSIPATORS", d.ChannelDissipators),
		ChannelRate:          getEnvAsFloat("COHERENCE_CHANNEL_RATE", d.ChannelRate),
	}
}

// Validate checks the configured values are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout)
	}
	if c.Physics == nil {
		return fmt.Errorf("physics configuration missing")
	}

	p := c.Physics
	switch {
	case p.BaseTimeStep <= 0:
		return fmt.Errorf("base time step must be positive, got %g", p.BaseTimeStep)
	case p.MaxSteps < 1:
		return fmt.Errorf("max steps must be at least 1, got %d", p.MaxSteps)
	case p.TraceTolerance <= 0 || p.HermiticityTolerance <= 0 || p.PSDTolerance <= 0:
		return fmt.Errorf("tolerances must be positive")
	case p.Temperature <= 0:
		return fmt.Errorf("temperature must be positive, got %g", p.Temperature)
	case p.ChannelRate < 0:
		return fmt.Errorf("channel rate must not be negative, got %g", p.ChannelRate)
	}

	cfg := p.ToEngineConfig()
	if err := cfg.Hamiltonian.Validate(); err != nil {
		return fmt.Errorf("hamiltonian: %w", err)
	}
	if err := cfg.Lindblad.Validate(); err != nil {
		return fmt.Errorf("lindblad: %w", err)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
