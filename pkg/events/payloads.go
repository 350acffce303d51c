package events

import (
	"fmt"

	"github.com/aretw0/contractflow/pkg/core"
)

// StageChanged is published after every successful stage transition.
// Confirmed is true when the stage was reached through a deliberate user
// action and false when it was derived.
type StageChanged struct {
	ContractID string
	Stage      core.Stage
	Confirmed  bool
	Source     string
}

func (e StageChanged) String() string {
	return fmt.Sprintf("stage-changed %s -> %s (confirmed=%t, source=%s)", e.ContractID, e.Stage, e.Confirmed, e.Source)
}

// SignatureChanged is published after a signature is written or removed.
type SignatureChanged struct {
	ContractID           string
	Role                 core.Role
	HasDesignerSignature bool
	Source               string
}

func (e SignatureChanged) String() string {
	return fmt.Sprintf("signature-changed %s %s (designer=%t, source=%s)", e.ContractID, e.Role, e.HasDesignerSignature, e.Source)
}

// CacheChanged is published when another process rewrote a local cache key.
type CacheChanged struct {
	Key string
}

func (e CacheChanged) String() string {
	return "cache-changed " + e.Key
}

// Event sources.
const (
	SourceUser      = "user"
	SourceDerived   = "derived"
	SourceSignature = "signature"
	SourceExternal  = "external"
)
