package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/contractflow/pkg/core"
)

func entry(v string, ms int64) *core.CacheEntry[string] {
	return &core.CacheEntry[string]{Value: v, LastUpdated: time.UnixMilli(ms)}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		local  *core.CacheEntry[string]
		remote *core.CacheEntry[string]
		action Action
		winner string
		stale  bool
	}{
		{name: "both absent", action: ActionDefault},
		{name: "local only", local: entry("signed", 100), action: ActionPush, winner: "signed"},
		{name: "remote only", remote: entry("draft", 50), action: ActionPull, winner: "draft"},
		{name: "local newer", local: entry("signed", 100), remote: entry("draft", 50), action: ActionPush, winner: "signed"},
		{name: "remote newer", local: entry("draft", 50), remote: entry("signed", 100), action: ActionPull, winner: "signed", stale: true},
		{name: "tie goes remote", local: entry("draft", 100), remote: entry("signed", 100), action: ActionPull, winner: "signed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.local, tt.remote)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.stale, d.Stale)
			if tt.action == ActionDefault {
				assert.Nil(t, d.Winner)
				return
			}
			if assert.NotNil(t, d.Winner) {
				assert.Equal(t, tt.winner, d.Winner.Value)
			}
		})
	}
}

func TestAction_String(t *testing.T) {
	assert.Equal(t, "push", ActionPush.String())
	assert.Equal(t, "pull", ActionPull.String())
	assert.Equal(t, "default", ActionDefault.String())
}
