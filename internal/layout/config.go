package layout

import (
	"math"

	"fabricviz/internal/domain"
)

// Config holds the simulation parameters
type Config struct {
	Width  float64
	Height float64

	// Charge is the many-body strength; negative values repel.
	Charge float64
	// DistanceMin2 floors the squared distance used by repulsion.
	DistanceMin2 float64

	LinkDistance   float64
	CenterStrength float64

	VelocityDecay float64
	AlphaMin      float64
	AlphaDecay    float64
	AlphaTarget   float64

	// Seed drives the tie-break jitter for coincident routers.
	Seed int64
}

// DefaultConfig returns the stock parameters
func DefaultConfig() Config {
	cfg := Config{
		Width:          960,
		Height:         540,
		Charge:         -3000,
		DistanceMin2:   1,
		LinkDistance:   300,
		CenterStrength: 0.1,
		VelocityDecay:  0.4,
		AlphaMin:       0.001,
		AlphaTarget:    0,
		Seed:           1,
	}
	cfg.AlphaDecay = DecayFor(cfg.AlphaMin, 300)
	return cfg
}

// DecayFor returns the per-step decay that takes alpha from 1 to alphaMin in steps ticks
func DecayFor(alphaMin float64, steps int) float64 {
	if steps <= 0 || alphaMin <= 0 {
		return 0
	}
	return 1 - math.Pow(alphaMin, 1/float64(steps))
}

// Center returns the middle of the view
func (c Config) Center() domain.Point {
	return domain.Point{X: c.Width / 2, Y: c.Height / 2}
}

// withDefaults fills zero fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Width == 0 {
		c.Width = def.Width
	}
	if c.Height == 0 {
		c.Height = def.Height
	}
	if c.Charge == 0 {
		c.Charge = def.Charge
	}
	if c.DistanceMin2 <= 0 {
		c.DistanceMin2 = def.DistanceMin2
	}
	if c.LinkDistance == 0 {
		c.LinkDistance = def.LinkDistance
	}
	if c.CenterStrength == 0 {
		c.CenterStrength = def.CenterStrength
	}
	if c.VelocityDecay == 0 {
		c.VelocityDecay = def.VelocityDecay
	}
	if c.AlphaMin == 0 {
		c.AlphaMin = def.AlphaMin
	}
	if c.AlphaDecay == 0 {
		c.AlphaDecay = DecayFor(c.AlphaMin, 300)
	}
	return c
}
