package layout

import (
	"math"
	"math/rand"

	"fabricviz/internal/domain"
)

// body is the simulation state attached to one router
type body struct {
	r      *domain.Router
	vx, vy float64
}

// spring joins two bodies; endpoints are held by identity
type spring struct {
	id       string
	src, dst *body
	strength float64
	bias     float64
}

// Simulation is a force-directed layout over routers and links.
// It writes router positions in place and is not safe for concurrent use.
type Simulation struct {
	cfg Config
	rng *rand.Rand

	bodies  []*body
	byID    map[string]*body
	springs []spring

	alpha float64
	ticks uint64
}

// NewSimulation creates a simulation with no routers at full temperature
func NewSimulation(cfg Config) *Simulation {
	cfg = cfg.withDefaults()
	return &Simulation{
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		byID:  make(map[string]*body),
		alpha: 1,
	}
}

// Config returns the effective parameters
func (s *Simulation) Config() Config {
	return s.cfg
}

// SetTopology replaces the working collections.
//
// Routers already in the simulation keep their position and velocity; new
// routers keep whatever position they were created with. Links whose
// endpoints are not among nodes are ignored.
func (s *Simulation) SetTopology(nodes []*domain.Router, links []*domain.Link) {
	bodies := make([]*body, 0, len(nodes))
	byID := make(map[string]*body, len(nodes))

	for _, r := range nodes {
		b, ok := s.byID[r.ID]
		if !ok || b.r != r {
			b = &body{r: r}
		}
		bodies = append(bodies, b)
		byID[r.ID] = b
	}

	degree := make(map[string]int, len(nodes))
	for _, l := range links {
		if byID[l.Source] == nil || byID[l.Target] == nil {
			continue
		}
		degree[l.Source]++
		degree[l.Target]++
	}

	springs := make([]spring, 0, len(links))
	for _, l := range links {
		src, dst := byID[l.Source], byID[l.Target]
		if src == nil || dst == nil {
			continue
		}
		ds, dt := float64(degree[l.Source]), float64(degree[l.Target])
		springs = append(springs, spring{
			id:       l.ID,
			src:      src,
			dst:      dst,
			strength: 1 / math.Min(ds, dt),
			bias:     ds / (ds + dt),
		})
	}

	s.bodies = bodies
	s.byID = byID
	s.springs = springs
}

// Restart re-injects full energy
func (s *Simulation) Restart() {
	s.alpha = 1
}

// Alpha returns the current temperature
func (s *Simulation) Alpha() float64 {
	return s.alpha
}

// Active reports whether steps still move routers
func (s *Simulation) Active() bool {
	return s.alpha >= s.cfg.AlphaMin
}

// Ticks returns the number of steps taken
func (s *Simulation) Ticks() uint64 {
	return s.ticks
}

// Len returns the number of simulated routers and springs
func (s *Simulation) Len() (nodes, links int) {
	return len(s.bodies), len(s.springs)
}

// Velocity returns the current velocity of a router
func (s *Simulation) Velocity(id string) (vx, vy float64, ok bool) {
	b, ok := s.byID[id]
	if !ok {
		return 0, 0, false
	}
	return b.vx, b.vy, true
}

// Step advances the simulation by one tick and reports whether routers moved.
// Once alpha falls below AlphaMin the step is a no-op until Restart.
func (s *Simulation) Step() bool {
	s.ticks++
	if !s.Active() {
		return false
	}

	s.alpha += (s.cfg.AlphaTarget - s.alpha) * s.cfg.AlphaDecay

	s.applySprings()
	s.applyCharge()
	s.applyCenter()

	keep := 1 - s.cfg.VelocityDecay
	for _, b := range s.bodies {
		b.vx *= keep
		b.vy *= keep
		b.r.X += b.vx
		b.r.Y += b.vy
	}

	s.sanitize()
	return true
}

func (s *Simulation) applySprings() {
	for i := range s.springs {
		sp := &s.springs[i]
		src, dst := sp.src, sp.dst

		x := dst.r.X + dst.vx - src.r.X - src.vx
		if x == 0 {
			x = s.jiggle()
		}
		y := dst.r.Y + dst.vy - src.r.Y - src.vy
		if y == 0 {
			y = s.jiggle()
		}

		l := math.Sqrt(x*x + y*y)
		l = (l - s.cfg.LinkDistance) / l * s.alpha * sp.strength
		x *= l
		y *= l

		dst.vx -= x * sp.bias
		dst.vy -= y * sp.bias
		src.vx += x * (1 - sp.bias)
		src.vy += y * (1 - sp.bias)
	}
}

func (s *Simulation) applyCharge() {
	for i, a := range s.bodies {
		for j, b := range s.bodies {
			if i == j {
				continue
			}

			x := b.r.X - a.r.X
			if x == 0 {
				x = s.jiggle()
			}
			y := b.r.Y - a.r.Y
			if y == 0 {
				y = s.jiggle()
			}

			l := x*x + y*y
			if l < s.cfg.DistanceMin2 {
				l = math.Sqrt(s.cfg.DistanceMin2 * l)
			}

			w := s.cfg.Charge * s.alpha / l
			a.vx += x * w
			a.vy += y * w
		}
	}
}

func (s *Simulation) applyCenter() {
	n := len(s.bodies)
	if n == 0 {
		return
	}

	var sx, sy float64
	for _, b := range s.bodies {
		sx += b.r.X
		sy += b.r.Y
	}

	c := s.cfg.Center()
	sx = (sx/float64(n) - c.X) * s.cfg.CenterStrength
	sy = (sy/float64(n) - c.Y) * s.cfg.CenterStrength
	for _, b := range s.bodies {
		b.r.X -= sx
		b.r.Y -= sy
	}
}

// sanitize puts any router with a non-finite position or velocity back near the center
func (s *Simulation) sanitize() {
	c := s.cfg.Center()
	for _, b := range s.bodies {
		p := b.r.Position()
		v := domain.Point{X: b.vx, Y: b.vy}
		if p.Finite() && v.Finite() {
			continue
		}
		b.r.X = c.X + s.jiggle()
		b.r.Y = c.Y + s.jiggle()
		b.vx, b.vy = 0, 0
	}
}

func (s *Simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}
