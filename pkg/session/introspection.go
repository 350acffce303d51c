package session

import (
	"github.com/aretw0/introspection"

	"github.com/aretw0/contractflow/pkg/cache"
	"github.com/aretw0/contractflow/pkg/core"
)

// State exposes the session internals for observability.
type State struct {
	ContractID      string      `json:"contract_id"`
	Stage           core.Stage  `json:"stage"`
	ReadOnly        bool        `json:"read_only"`
	Unlocking       bool        `json:"unlocking"`
	AutosavePending bool        `json:"autosave_pending"`
	Cache           cache.State `json:"cache"`
}

// State implements introspection.Introspectable.
func (s *Session) State() any {
	cs, _ := s.cache.State().(cache.State)
	return State{
		ContractID:      s.id,
		Stage:           s.stages.Stage(),
		ReadOnly:        s.ReadOnly(),
		Unlocking:       s.stages.Unlocking(),
		AutosavePending: s.autosave.Pending(),
		Cache:           cs,
	}
}

// ComponentType implements introspection.Component.
func (s *Session) ComponentType() string {
	return "session"
}

var _ introspection.Introspectable = (*Session)(nil)
var _ introspection.Component = (*Session)(nil)
