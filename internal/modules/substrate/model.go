// Package substrate provides the parameter tables for the biological substrates the engine models.
//
// A Model is pure configuration: a fixed collection of Qubit records populated from a
// per-substrate table. Nothing here evolves in time.
package substrate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/aristath/coherence/internal/domain"
	"github.com/aristath/coherence/pkg/formulas"
)

// Type names a substrate family
type Type string

const (
	Default     Type = "default"
	Microtubule Type = "microtubule"
	Posner      Type = "posner"
	Tryptophan  Type = "tryptophan"
)

var aliases = map[string]Type{
	"":                Default,
	"default":         Default,
	"microtubule":     Microtubule,
	"tubulin":         Microtubule,
	"posner":          Posner,
	"posner_molecule": Posner,
	"tryptophan":      Tryptophan,
	"aromatic":        Tryptophan,
}

// ParseType resolves a substrate name. The empty name selects Default.
// Unknown names fail with a ConfigurationError wrapping ErrUnknownSubstrate.
func ParseType(name string) (Type, error) {
	t, ok := aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &domain.ConfigurationError{
			Field:  "substrate",
			Value:  name,
			Reason: fmt.Sprintf("supported substrates are %v", Types()),
			Cause:  domain.ErrUnknownSubstrate,
		}
	}
	return t, nil
}

// Types lists the supported substrates in a stable order
func Types() []Type {
	types := make([]Type, 0, len(tables))
	for t := range tables {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Qubit holds the physical constants of one qubit-like entity. Times are in seconds,
// energies in eV, positions in metres, metabolic rate in watts.
type Qubit struct {
	ID                int
	Position          [3]float64
	EnergyLevels      []float64
	CouplingStrength  float64
	T1                float64
	T2                float64
	GateFidelity      float64
	ReadoutFidelity   float64
	Temperature       float64
	MetabolicRate     float64
	QuantumEfficiency float64
}

type parameters struct {
	count             int
	energyLevels      []float64
	couplingStrength  float64
	t1                float64
	t2                float64
	gateFidelity      float64
	readoutFidelity   float64
	metabolicRate     float64
	quantumEfficiency float64
	position          func(i, count int) [3]float64
}

const nanometre = 1e-9

var tables = map[Type]parameters{
	// 13 protofilaments around a 12.5 nm helix with 0.92 nm rise per dimer
	Microtubule: {
		count:             13,
		energyLevels:      []float64{0, 4.1e-3},
		couplingStrength:  1e-3,
		t1:                1e-11,
		t2:                1e-13,
		gateFidelity:      0.90,
		readoutFidelity:   0.85,
		metabolicRate:     1e-18,
		quantumEfficiency: 0.10,
		position: func(i, count int) [3]float64 {
			angle := 2 * math.Pi * float64(i) / float64(count)
			return [3]float64{12.5 * nanometre * math.Cos(angle), 12.5 * nanometre * math.Sin(angle), 0.92 * nanometre * float64(i)}
		},
	},
	// Six phosphorus nuclear spins on the vertices of an octahedron
	Posner: {
		count:             6,
		energyLevels:      []float64{0, 1.7e-7},
		couplingStrength:  1e-6,
		t1:                1e3,
		t2:                1.0,
		gateFidelity:      0.99,
		readoutFidelity:   0.95,
		metabolicRate:     1e-20,
		quantumEfficiency: 0.50,
		position: func(i, _ int) [3]float64 {
			var p [3]float64
			sign := 1.0
			if i%2 == 1 {
				sign = -1
			}
			p[(i/2)%3] = sign * 0.45 * nanometre
			return p
		},
	},
	// Indole rings on a planar 1.2 nm ring network
	Tryptophan: {
		count:             8,
		energyLevels:      []float64{0, 4.3, 4.5},
		couplingStrength:  1e-2,
		t1:                2.6e-9,
		t2:                1e-12,
		gateFidelity:      0.80,
		readoutFidelity:   0.90,
		metabolicRate:     5e-19,
		quantumEfficiency: 0.13,
		position: func(i, count int) [3]float64 {
			angle := 2 * math.Pi * float64(i) / float64(count)
			return [3]float64{1.2 * nanometre * math.Cos(angle), 1.2 * nanometre * math.Sin(angle), 0}
		},
	},
	Default: {
		count:             4,
		energyLevels:      []float64{0, 1e-5},
		couplingStrength:  1e-3,
		t1:                1e-6,
		t2:                1e-7,
		gateFidelity:      0.95,
		readoutFidelity:   0.95,
		metabolicRate:     0,
		quantumEfficiency: 1.0,
		position: func(i, _ int) [3]float64 {
			return [3]float64{float64(i) * nanometre, 0, 0}
		},
	},
}

// Model is an immutable collection of qubits for one substrate
type Model struct {
	substrate Type
	qubits    []Qubit
}

// NewModel builds the qubit collection for a substrate at physiological temperature.
func NewModel(t Type) (*Model, error) {
	params, ok := tables[t]
	if !ok {
		return nil, &domain.ConfigurationError{Field: "substrate", Value: t, Reason: "no parameter table", Cause: domain.ErrUnknownSubstrate}
	}

	qubits := make([]Qubit, params.count)
	for i := range qubits {
		levels := make([]float64, len(params.energyLevels))
		copy(levels, params.energyLevels)
		qubits[i] = Qubit{
			ID:                i,
			Position:          params.position(i, params.count),
			EnergyLevels:      levels,
			CouplingStrength:  params.couplingStrength,
			T1:                params.t1,
			T2:                params.t2,
			GateFidelity:      params.gateFidelity,
			ReadoutFidelity:   params.readoutFidelity,
			Temperature:       formulas.PhysiologicalTemperature,
			MetabolicRate:     params.metabolicRate,
			QuantumEfficiency: params.quantumEfficiency,
		}
	}

	return &Model{substrate: t, qubits: qubits}, nil
}

// Type returns the substrate type
func (m *Model) Type() Type {
	return m.substrate
}

// Qubits returns copies of the qubit records
func (m *Model) Qubits() []Qubit {
	out := make([]Qubit, len(m.qubits))
	for i, q := range m.qubits {
		out[i] = q
		out[i].EnergyLevels = append([]float64(nil), q.EnergyLevels...)
	}
	return out
}

// Summary aggregates a substrate's qubit table
type Summary struct {
	Substrate            Type    `json:"substrate"`
	QubitCount           int     `json:"qubit_count"`
	MeanT2               float64 `json:"mean_t2"`
	MeanGateFidelity     float64 `json:"mean_gate_fidelity"`
	TotalMetabolicRate   float64 `json:"total_metabolic_rate"`
	MeanCouplingStrength float64 `json:"mean_coupling_strength"`
}

// Summary returns the aggregate view of the qubit collection
func (m *Model) Summary() Summary {
	t2 := make([]float64, len(m.qubits))
	gate := make([]float64, len(m.qubits))
	metabolic := make([]float64, len(m.qubits))
	coupling := make([]float64, len(m.qubits))
	for i, q := range m.qubits {
		t2[i] = q.T2
		gate[i] = q.GateFidelity
		metabolic[i] = q.MetabolicRate
		coupling[i] = q.CouplingStrength
	}

	return Summary{
		Substrate:            m.substrate,
		QubitCount:           len(m.qubits),
		MeanT2:               formulas.Mean(t2),
		MeanGateFidelity:     formulas.Mean(gate),
		TotalMetabolicRate:   formulas.Sum(metabolic),
		MeanCouplingStrength: formulas.Mean(coupling),
	}
}
