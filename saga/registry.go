package saga

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry resolves compensation handlers by step name. Compensations are
// registered at runtime as closures and do not survive a restart; during
// recovery the orchestrator falls back to this registry to find a handler for
// each persisted entry. An interrupted entry with no registered handler is
// recorded as a failed compensation.
type Registry struct {
	handlers *xsync.MapOf[string, CompensationFunc]
}

func NewRegistry() *Registry {
	return &Registry{handlers: xsync.NewMapOf[string, CompensationFunc]()}
}

func (r *Registry) Register(stepName string, fn CompensationFunc) *Registry {
	r.handlers.Store(stepName, fn)
	return r
}

func (r *Registry) Resolve(stepName string) (CompensationFunc, bool) {
	return r.handlers.Load(stepName)
}
