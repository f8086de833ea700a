// Package squad maps decomposed sub-tasks onto named worker groups and
// dispatches them phase by phase: phases run sequentially, sub-tasks
// within a phase run in parallel.
package squad

import "github.com/datengrube/context-orchestrator/internal/config"

// Registry maps task categories to squad names. It is built from static
// configuration at startup and never mutated afterwards.
type Registry struct {
	routes       map[string]string
	defaultSquad string
}

// NewRegistry builds a registry from configuration
func NewRegistry(cfg config.SquadConfig) *Registry {
	routes := make(map[string]string, len(cfg.Routes))
	for _, r := range cfg.Routes {
		routes[r.Category] = r.Squad
	}
	def := cfg.DefaultSquad
	if def == "" {
		def = "general"
	}
	return &Registry{routes: routes, defaultSquad: def}
}

// Route returns the squad for a task category, falling back to the
// default squad for unmapped categories
func (r *Registry) Route(category string) string {
	if squad, ok := r.routes[category]; ok {
		return squad
	}
	return r.defaultSquad
}

// Squads returns the distinct squad names in the registry, including the
// default
func (r *Registry) Squads() []string {
	seen := map[string]bool{r.defaultSquad: true}
	out := []string{r.defaultSquad}
	for _, s := range r.routes {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
