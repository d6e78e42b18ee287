// Package channels generates the substrate-specific decoherence channel matrices.
//
// Channels are diagnostic metadata. The engine only feeds them to the integrator when
// channel dissipators are explicitly enabled.
package channels

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/internal/linalg"
	"github.com/aristath/coherence/internal/modules/substrate"
)

// Pattern describes the sparsity structure of a channel
type Pattern string

const (
	PatternOscillatingDiagonal Pattern = "oscillating_diagonal"
	PatternBlockDiagonal       Pattern = "block_diagonal"
	PatternBanded              Pattern = "banded"
	PatternUniformDiagonal     Pattern = "uniform_diagonal"
)

const (
	baseMagnitude = 1e-2
	// oscillationPeriod follows the 13-protofilament repeat of a microtubule lattice
	oscillationPeriod = 13
	clusterBlockSize  = 6
	clusterMagnitude  = 1e-3
	aromaticBandwidth = 3
)

// Channel is an immutable n×n channel matrix owned by a substrate configuration.
type Channel struct {
	Substrate substrate.Type
	Pattern   Pattern
	matrix    *mat.CDense
}

// Matrix returns a copy of the channel matrix. Empty when generation failed.
func (c Channel) Matrix() *mat.CDense {
	if c.matrix == nil || c.matrix.IsEmpty() {
		return &mat.CDense{}
	}
	return linalg.Clone(c.matrix)
}

// Dimension returns n, or 0 for a failed channel
func (c Channel) Dimension() int {
	n, _ := linalg.Square(c.matrix)
	return n
}

// Generator produces one channel per substrate
type Generator struct {
	log zerolog.Logger
}

// NewGenerator creates a new channel generator
func NewGenerator(log zerolog.Logger) *Generator {
	return &Generator{log: log.With().Str("component", "channel_generator").Logger()}
}

// PatternFor returns the channel pattern of a substrate. Unrecognised types use the uniform diagonal.
func PatternFor(t substrate.Type) Pattern {
	switch t {
	case substrate.Microtubule:
		return PatternOscillatingDiagonal
	case substrate.Posner:
		return PatternBlockDiagonal
	case substrate.Tryptophan:
		return PatternBanded
	default:
		return PatternUniformDiagonal
	}
}

// Generate builds the channel for a substrate. For a non-positive dimension it returns a
// channel with an empty matrix together with a ConfigurationError; callers on the diagnostic
// path log the error and keep going.
func (g *Generator) Generate(t substrate.Type, dimension int) (Channel, error) {
	pattern := PatternFor(t)
	if dimension < 1 {
		err := domain.NewConfigurationError("channel_dimension", dimension, "must be positive")
		g.log.Warn().Err(err).Str("substrate", string(t)).Msg("Channel generation failed, returning zero channel")
		return Channel{Substrate: t, Pattern: pattern, matrix: &mat.CDense{}}, err
	}

	var m *mat.CDense
	switch pattern {
	case PatternOscillatingDiagonal:
		m = oscillatingDiagonal(dimension)
	case PatternBlockDiagonal:
		m = blockDiagonal(dimension)
	case PatternBanded:
		m = banded(dimension)
	default:
		m = uniformDiagonal(dimension)
	}

	return Channel{Substrate: t, Pattern: pattern, matrix: m}, nil
}

func oscillatingDiagonal(n int) *mat.CDense {
	m := linalg.New(n)
	for i := 0; i < n; i++ {
		phase := 2 * math.Pi * float64(i) / oscillationPeriod
		m.Set(i, i, complex(baseMagnitude*(1+0.5*math.Sin(phase)), 0))
	}
	return m
}

// blockDiagonal fills each 6×6 diagonal block uniformly; a trailing partial block is kept.
func blockDiagonal(n int) *mat.CDense {
	m := linalg.New(n)
	for start := 0; start < n; start += clusterBlockSize {
		end := start + clusterBlockSize
		if end > n {
			end = n
		}
		for i := start; i < end; i++ {
			for j := start; j < end; j++ {
				m.Set(i, j, complex(clusterMagnitude, 0))
			}
		}
	}
	return m
}

func banded(n int) *mat.CDense {
	m := linalg.New(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := i - j
			if d < 0 {
				d = -d
			}
			if d <= aromaticBandwidth {
				m.Set(i, j, complex(baseMagnitude*math.Exp(-float64(d)), 0))
			}
		}
	}
	return m
}

func uniformDiagonal(n int) *mat.CDense {
	m := linalg.New(n)
	for i := 0; i < n; i++ {
		m.Set(i, i, complex(baseMagnitude, 0))
	}
	return m
}
