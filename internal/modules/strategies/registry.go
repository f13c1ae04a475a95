package strategies

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry manages all registered scan strategies.
type Registry struct {
	strategies map[string]Strategy
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewRegistry creates an empty strategy registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{
		strategies: make(map[string]Strategy),
		log:        log.With().Str("component", "strategy_registry").Logger(),
	}
}

// Register registers a strategy.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.ID()
	r.strategies[id] = s
	r.log.Debug().
		Str("strategy", id).
		Int("legs", s.NumLegs()).
		Msg("Registered strategy")
}

// Get retrieves a strategy by id.
func (r *Registry) Get(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[id]
	if !ok {
		return nil, fmt.Errorf("strategy not found: %s", id)
	}
	return s, nil
}

// All returns all registered strategies sorted by id.
func (r *Registry) All() []Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID() < all[j].ID() })
	return all
}

// Infos returns descriptive metadata for every registered strategy,
// sorted by id.
func (r *Registry) Infos() []Info {
	all := r.All()
	infos := make([]Info, 0, len(all))
	for _, s := range all {
		infos = append(infos, Info{
			ID:          s.ID(),
			DisplayName: s.DisplayName(),
			Description: s.Description(),
			NumLegs:     s.NumLegs(),
			Complexity:  s.Complexity(),
			Defaults:    s.DefaultCriteria(),
		})
	}
	return infos
}

// NewPopulatedRegistry creates a strategy registry with all scan
// engines registered.
func NewPopulatedRegistry(deps Deps, log zerolog.Logger) *Registry {
	registry := NewRegistry(log)

	registry.Register(NewPMCC(deps, log))
	registry.Register(NewPMCP(deps, log))
	registry.Register(NewSyntheticLong(deps, log))
	registry.Register(NewJadeLizard(deps, log))
	registry.Register(NewTwistedSister(deps, log))
	registry.Register(NewBWBCall(deps, log))
	registry.Register(NewBWBPut(deps, log))
	registry.Register(NewIronCondor(deps, log))

	log.Info().
		Int("strategies", len(registry.strategies)).
		Msg("Strategy registry initialized")

	return registry
}
