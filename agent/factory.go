package agent

import (
	"fmt"
	"sync"
)

// FactoryFunc constructs an agent of one variant. The id is allocated by
// the registry; the definition has already passed Validate.
type FactoryFunc func(id string, def Def, rt Runtime) (Agent, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[Kind]FactoryFunc)
)

// RegisterFactory registers the factory for a variant kind. Variant
// packages call this from init().
func RegisterFactory(kind Kind, factory FactoryFunc) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = factory
}

// Create builds an agent from a validated definition.
func Create(id string, def Def, rt Runtime) (Agent, error) {
	factoryMu.RLock()
	factory, ok := factories[def.Kind]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown agent kind: %s", def.Kind)
	}
	return factory(id, def, rt)
}
