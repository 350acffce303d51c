// Package reconcile keeps the locally cached contract status consistent
// with the remote store using last-write-wins on timestamps.
package reconcile

import "github.com/aretw0/contractflow/pkg/core"

// Action is the outcome of comparing a local and a remote entry.
type Action int

const (
	// ActionDefault means neither side has a value.
	ActionDefault Action = iota
	// ActionPull means the remote value wins and must be copied locally.
	ActionPull
	// ActionPush means the local value wins and must be written remotely.
	ActionPush
)

func (a Action) String() string {
	switch a {
	case ActionPull:
		return "pull"
	case ActionPush:
		return "push"
	}
	return "default"
}

// Decision is the result of Decide.
type Decision[T any] struct {
	Action Action
	// Winner is the entry to expose; nil for ActionDefault.
	Winner *core.CacheEntry[T]
	// Stale is set when a local value lost to a strictly newer remote one.
	Stale bool
}

// Decide compares local and remote by LastUpdated. The local entry wins only
// when it is strictly newer or the remote is absent; ties go to the remote
// store because it is authoritative.
func Decide[T any](local, remote *core.CacheEntry[T]) Decision[T] {
	switch {
	case local == nil && remote == nil:
		return Decision[T]{Action: ActionDefault}
	case remote == nil:
		return Decision[T]{Action: ActionPush, Winner: local}
	case local == nil:
		return Decision[T]{Action: ActionPull, Winner: remote}
	case local.LastUpdated.After(remote.LastUpdated):
		return Decision[T]{Action: ActionPush, Winner: local}
	default:
		return Decision[T]{
			Action: ActionPull,
			Winner: remote,
			Stale:  remote.LastUpdated.After(local.LastUpdated),
		}
	}
}
