// Package sim is a stand-in for the pulse-sequencing hardware: it produces
// photon counts for a grid of trapped sites from a detuned Rabi model and a
// Poisson fluorescence readout.
package sim

import "math"

// RabiModel gives the bright-state probability after a square drive pulse.
// The resonance shifts linearly with the bias coil current.
type RabiModel struct {
	CenterHz     float64 // resonance at zero coil current
	HzPerAmp     float64 // Zeeman shift per amp of coil current
	CoilCurrentA float64
	RabiHz       float64
	DurationS    float64
}

// DefaultRabiModel is a 10 MHz line shifting 0.13 MHz/A, driven with a
// roughly pi pulse at 1 MHz Rabi frequency.
func DefaultRabiModel() RabiModel {
	return RabiModel{
		CenterHz:  10e6,
		HzPerAmp:  0.13e6,
		RabiHz:    1e6,
		DurationS: 0.48e-6,
	}
}

// ResonanceHz returns the line centre at the configured coil current.
func (m RabiModel) ResonanceHz() float64 {
	return m.CenterHz + m.HzPerAmp*m.CoilCurrentA
}

// PBright returns (Ω/Ω')² sin²(Ω't/2) with Ω' = √(Ω²+Δ²), clamped to [0, 1].
// Negative Rabi frequencies and durations are treated as zero.
func (m RabiModel) PBright(freqHz float64) float64 {
	omega := 2 * math.Pi * math.Max(0, m.RabiHz)
	delta := 2 * math.Pi * (freqHz - m.ResonanceHz())
	eff := math.Hypot(omega, delta)
	if eff == 0 {
		return 0
	}
	s := math.Sin(0.5 * eff * math.Max(0, m.DurationS))
	return clamp01((omega / eff) * (omega / eff) * s * s)
}

func clamp01(p float64) float64 {
	switch {
	case p < 0 || math.IsNaN(p):
		return 0
	case p > 1:
		return 1
	}
	return p
}
