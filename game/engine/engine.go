package engine

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Engine applies Rules. It is safe for concurrent use.
type Engine struct {
	rules Rules

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine creates a new engine with the provided rules and a time-based seed
func NewEngine(rules Rules) (*Engine, error) {
	return NewEngineWithSeed(rules, uint64(time.Now().UnixNano()))
}

// NewEngineWithSeed creates an engine with a deterministic random source
func NewEngineWithSeed(rules Rules, seed uint64) (*Engine, error) {
	if err := ValidateRules(&rules); err != nil {
		return nil, err
	}

	rules.DefaultWeapons = append([]string(nil), rules.DefaultWeapons...)

	return &Engine{
		rules: rules,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// NewEngineWithDefaults creates a new engine with DefaultRules
func NewEngineWithDefaults() *Engine {
	eng, err := NewEngine(DefaultRules())
	if err != nil {
		// DefaultRules always validates
		panic(err)
	}
	return eng
}

// Rules returns a copy of the active rules
func (e *Engine) Rules() Rules {
	rules := e.rules
	rules.DefaultWeapons = append([]string(nil), e.rules.DefaultWeapons...)
	return rules
}

// MaxHealth returns the health a fresh or respawned player starts with
func (e *Engine) MaxHealth() int {
	return e.rules.MaxHealth
}

// DefaultWeapons returns a fresh copy of the starting loadout
func (e *Engine) DefaultWeapons() []string {
	return append([]string(nil), e.rules.DefaultWeapons...)
}

// SpawnPosition draws x and z uniformly from [-SpawnExtent, SpawnExtent]
// and places the point on the ground.
func (e *Engine) SpawnPosition() Vector {
	e.mu.Lock()
	x := e.rng.Float64()
	z := e.rng.Float64()
	e.mu.Unlock()

	extent := e.rules.SpawnExtent
	return Vector{
		X: x*2*extent - extent,
		Y: e.rules.GroundLevel,
		Z: z*2*extent - extent,
	}
}

// InSpawnArea reports whether p lies inside the spawn bounding box
func (e *Engine) InSpawnArea(p Vector) bool {
	extent := e.rules.SpawnExtent
	return p.X >= -extent && p.X <= extent &&
		p.Z >= -extent && p.Z <= extent &&
		p.Y == e.rules.GroundLevel
}
