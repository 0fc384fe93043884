package strategy

import (
	"fmt"
	"strings"
)

// Registry is an explicit, ordered set of strategies. Order matters to the
// backtest engine: the first qualifying signal on a bar wins.
type Registry struct {
	ordered []Strategy
	byName  map[string]Strategy
}

// NewRegistry registers strategies in the given order
func NewRegistry(strategies ...Strategy) (*Registry, error) {
	r := &Registry{byName: make(map[string]Strategy, len(strategies))}
	for _, s := range strategies {
		if s == nil {
			return nil, fmt.Errorf("nil strategy")
		}
		if _, dup := r.byName[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate strategy %q", s.Name())
		}
		r.byName[s.Name()] = s
		r.ordered = append(r.ordered, s)
	}
	return r, nil
}

// Default returns the four built-in strategies
func Default() *Registry {
	r, _ := NewRegistry(NewMomentum(), NewBreakout(), NewMeanReversion(), NewTrendFollow())
	return r
}

// All returns the strategies in registration order
func (r *Registry) All() []Strategy {
	return append([]Strategy(nil), r.ordered...)
}

// Names returns registered names in order
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, s := range r.ordered {
		names[i] = s.Name()
	}
	return names
}

// Lookup finds a strategy by name
func (r *Registry) Lookup(name string) (Strategy, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Select returns the named strategies in the order requested
func (r *Registry) Select(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, n := range names {
		s, ok := r.byName[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q (available: %s)", n, strings.Join(r.Names(), ", "))
		}
		out = append(out, s)
	}
	return out, nil
}
