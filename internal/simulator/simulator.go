// Package simulator implements the per-tick random walk of each production
// machine: output, idling, target achievement and random breakdowns.
package simulator

import (
	"fmt"
	"time"

	"github.com/devghori1264/prodmon/internal/models"
)

const (
	ProblemTargetReached = "target reached."
	ProblemWaiting       = "waiting for material."
)

// DefaultFailures is the breakdown catalog drawn from on random failure.
var DefaultFailures = []string{
	"Sensor failed to read material.",
	"Conveyor motor overheating.",
	"Low air pressure in pneumatic system.",
	"PLC controller fault.",
}

// Rand is the randomness the simulator needs. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// Config holds the simulation policy.
type Config struct {
	Machines      int
	TargetMin     int
	TargetMax     int
	ProduceChance float64
	MaxProduce    int
	IdleAfter     time.Duration
	FailureChance float64
	Failures      []string
}

// DefaultConfig returns the stock policy: ten machines, targets in [50,199],
// 60% production chance of 1..10 units, idle after 15s, 1% breakdown chance.
func DefaultConfig() Config {
	return Config{
		Machines:      10,
		TargetMin:     50,
		TargetMax:     199,
		ProduceChance: 0.6,
		MaxProduce:    10,
		IdleAfter:     15 * time.Second,
		FailureChance: 0.01,
		Failures:      DefaultFailures,
	}
}

// Simulator advances machines one tick at a time. It is not safe for
// concurrent use; the coordinator serializes calls.
type Simulator struct {
	cfg Config
	rnd Rand
}

// New creates a simulator. Zero counts, targets, durations and an empty
// failure catalog fall back to defaults; the two chances are taken as given,
// so zero disables production or breakdowns.
func New(cfg Config, rnd Rand) *Simulator {
	def := DefaultConfig()
	if cfg.Machines <= 0 {
		cfg.Machines = def.Machines
	}
	if cfg.TargetMin <= 0 {
		cfg.TargetMin = def.TargetMin
	}
	if cfg.TargetMax < cfg.TargetMin {
		cfg.TargetMax = cfg.TargetMin
	}
	if cfg.MaxProduce <= 0 {
		cfg.MaxProduce = def.MaxProduce
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = def.IdleAfter
	}
	if len(cfg.Failures) == 0 {
		cfg.Failures = def.Failures
	}
	return &Simulator{cfg: cfg, rnd: rnd}
}

// Config returns the effective policy.
func (s *Simulator) Config() Config { return s.cfg }

// Catalog returns the fixed machine identities: ids 1..n, names M-A01, M-B02...
func Catalog(n int) []models.Machine {
	out := make([]models.Machine, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Machine{
			ID:      i + 1,
			Name:    fmt.Sprintf("M-%c0%d", 'A'+rune(i%26), i+1),
			Product: fmt.Sprintf("Model %d V%d", 100+i, i%3+1),
		})
	}
	return out
}

// NewShift builds a fresh fleet for a new shift with random targets.
func (s *Simulator) NewShift(now time.Time) []models.Machine {
	machines := Catalog(s.cfg.Machines)
	for i := range machines {
		m := &machines[i]
		m.Target = s.cfg.TargetMin + s.rnd.IntN(s.cfg.TargetMax-s.cfg.TargetMin+1)
		m.Achievement = 0
		m.Status = models.StatusRunning
		m.Problem = models.NoProblem
		m.Efficiency = 100
		m.LastUpdate = now
		m.RepairRequested = false
	}
	return machines
}

// Step applies one tick to m and reports whether it broke down on this tick.
func (s *Simulator) Step(m models.Machine, now time.Time) (models.Machine, bool) {
	if m.Status == models.StatusResolved {
		m.Status = models.StatusRunning
		m.Problem = models.NoProblem
		m.RepairRequested = false
	}

	if m.Status == models.StatusRunning || m.Status == models.StatusIdle {
		produced := 0
		if m.Achievement < m.Target && s.rnd.Float64() < s.cfg.ProduceChance {
			produced = s.rnd.IntN(s.cfg.MaxProduce) + 1
		}
		next := min(m.Achievement+produced, m.Target)

		switch {
		case next >= m.Target:
			m.Status = models.StatusAchieved
			m.Problem = ProblemTargetReached
		case produced > 0:
			m.Status = models.StatusRunning
			m.Problem = models.NoProblem
			m.LastUpdate = now
		case m.Status == models.StatusRunning && now.Sub(m.LastUpdate) > s.cfg.IdleAfter:
			m.Status = models.StatusIdle
			m.Problem = ProblemWaiting
		}
		m.Achievement = next
	}

	failed := false
	if m.Status != models.StatusDown && m.Status != models.StatusAchieved && !m.RepairRequested &&
		s.rnd.Float64() < s.cfg.FailureChance {
		m.Status = models.StatusDown
		m.Problem = s.cfg.Failures[s.rnd.IntN(len(s.cfg.Failures))]
		failed = true
	}

	m.Efficiency = models.Efficiency(m.Achievement, m.Target)
	return m, failed
}

// StepAll advances every machine and returns the ids that broke down.
func (s *Simulator) StepAll(machines []models.Machine, now time.Time) ([]models.Machine, []int) {
	out := make([]models.Machine, len(machines))
	var failed []int
	for i, m := range machines {
		next, down := s.Step(m, now)
		out[i] = next
		if down {
			failed = append(failed, next.ID)
		}
	}
	return out, failed
}
