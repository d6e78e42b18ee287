package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/coherence/internal/engine"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("COHERENCE_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 2*time.Minute, cfg.RequestTimeout)
	assert.Equal(t, "0 0 * * * *", cfg.CalibrationSchedule)
	assert.Equal(t, engine.DefaultConfig(), cfg.Physics.ToEngineConfig())
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("COHERENCE_DATA_DIR", dir)
	t.Setenv("COHERENCE_PORT", "9100")
	t.Setenv("COHERENCE_DEV_MODE", "true")
	t.Setenv("COHERENCE_WORKERS", "8")
	t.Setenv("COHERENCE_REQUEST_TIMEOUT", "30s")
	t.Setenv("COHERENCE_CALIBRATION_SCHEDULE", "")
	t.Setenv("COHERENCE_BASE_TIME_STEP", "1e-10")
	t.Setenv("COHERENCE_MAX_STEPS", "5000")
	t.Setenv("COHERENCE_DEPHASING_RATE", "2.5e4")
	t.Setenv("COHERENCE_SEED", "7")
	t.Setenv("COHERENCE_CHANNEL_DISSIPATORS", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, 9100, cfg.Port)
	assert.True(t, cfg.DevMode)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Empty(t, cfg.CalibrationSchedule)

	ec := cfg.Physics.ToEngineConfig()
	assert.Equal(t, 1e-10, ec.Integrator.BaseTimeStep)
	assert.Equal(t, 5000, ec.Integrator.MaxSteps)
	assert.Equal(t, 2.5e4, ec.Lindblad.DephasingRate)
	assert.Equal(t, uint64(7), ec.Hamiltonian.Seed)
	assert.Equal(t, uint64(7), ec.Lindblad.Seed)
	assert.True(t, ec.ChannelDissipators)
}

func TestLoad_IgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("COHERENCE_DATA_DIR", t.TempDir())
	t.Setenv("COHERENCE_PORT", "not-a-port")
	t.Setenv("COHERENCE_TEMPERATURE", "warm")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, engine.DefaultConfig().Lindblad.Temperature, cfg.Physics.Temperature)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:           8010,
			Workers:        2,
			RequestTimeout: time.Minute,
			Physics:        loadPhysicsConfig(),
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"missing physics", func(c *Config) { c.Physics = nil }},
		{"time step", func(c *Config) { c.Physics.BaseTimeStep = 0 }},
		{"max steps", func(c *Config) { c.Physics.MaxSteps = 0 }},
		{"trace tolerance", func(c *Config) { c.Physics.TraceTolerance = -1 }},
		{"temperature", func(c *Config) { c.Physics.Temperature = 0 }},
		{"negative rate", func(c *Config) { c.Physics.DephasingRate = -1 }},
		{"long range scale", func(c *Config) { c.Physics.LongRangeScale = 1 }},
		{"channel rate", func(c *Config) { c.Physics.ChannelRate = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestPhysicsConfig_RoundTrip(t *testing.T) {
	want := engine.DefaultConfig()
	want.ChannelDissipators = true
	want.ChannelRate = 5e2
	want.Integrator.MaxSteps = 123

	assert.Equal(t, want, NewPhysicsConfig(want).ToEngineConfig())
}
