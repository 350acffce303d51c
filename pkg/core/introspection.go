package core

import (
	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	StoreType string `json:"store_type"`
}

// State implements introspection.Introspectable.
func (r *ContractRepository) State() any {
	storeType := "store"
	if comp, ok := r.store.(introspection.Component); ok {
		storeType = comp.ComponentType()
	}
	return RepositoryState{StoreType: storeType}
}

// ComponentType implements introspection.Component.
func (r *ContractRepository) ComponentType() string {
	return "contract-repository"
}

var _ introspection.Introspectable = (*ContractRepository)(nil)
var _ introspection.Component = (*ContractRepository)(nil)
