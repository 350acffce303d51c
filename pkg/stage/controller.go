// Package stage drives a contract through the edit, sign and send stages
// and decides when its content may be edited.
package stage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/contractflow/pkg/cache"
	"github.com/aretw0/contractflow/pkg/clock"
	"github.com/aretw0/contractflow/pkg/core"
	"github.com/aretw0/contractflow/pkg/events"
)

// Signatures is the part of signature.Store the controller consults.
type Signatures interface {
	Signatures(ctx context.Context, contractID string) (core.Signatures, error)
	Unsign(ctx context.Context, contractID string, role core.Role) error
}

// Intent qualifies a transition. Explicit marks a deliberate user action,
// which is what it takes to reopen a contract the designer has signed.
type Intent struct {
	Explicit bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source for persisted records.
func WithClock(c clock.Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ctl *Controller) { ctl.logger = logger }
}

// Controller is the stage machine of one contract. It starts in edit and
// follows designer signature changes published on the bus until Close.
type Controller struct {
	contractID string
	sigs       Signatures
	content    func() []byte
	records    *cache.Typed[core.StageRecord]
	bus        *events.Bus
	clock      clock.Clock
	logger     *slog.Logger

	mu        sync.Mutex
	stage     core.Stage
	unlocking bool

	unsubscribe func()
}

// New creates the controller of contractID. content returns the current
// editor content and is consulted on every decision.
func New(contractID string, sigs Signatures, content func() []byte, c *cache.Cache, bus *events.Bus, opts ...Option) *Controller {
	ctl := &Controller{
		contractID: contractID,
		sigs:       sigs,
		content:    content,
		records:    cache.NewTyped[core.StageRecord](c),
		bus:        bus,
		clock:      clock.Real(),
		logger:     slog.Default(),
		stage:      core.StageEdit,
	}
	for _, opt := range opts {
		opt(ctl)
	}
	ctl.unsubscribe = events.On(bus, events.TopicSignatureChanged, ctl.onSignatureChanged)
	return ctl
}

// Stage returns the current stage.
func (c *Controller) Stage() core.Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Unlocking reports whether an explicit return to edit is removing the
// designer signature right now.
func (c *Controller) Unlocking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unlocking
}

// Load restores the persisted stage, corrected against the current
// signatures and content. A persisted explicit entry into edit is honoured
// once and then rewritten as a derived record.
func (c *Controller) Load(ctx context.Context) error {
	rec, ok, err := c.records.Get(cache.StageKey(c.contractID))
	if err != nil {
		c.logger.Warn("ignoring unreadable stage record", "contract", c.contractID, "error", err)
		ok = false
	}
	sigs, err := c.sigs.Signatures(ctx, c.contractID)
	if err != nil {
		return fmt.Errorf("load stage of %s: %w", c.contractID, err)
	}

	var persisted *core.StageRecord
	if ok {
		persisted = &rec.Value
	}
	target := derive(persisted, sigs.HasDesigner(), core.HasContent(c.content()))
	c.logger.Debug("stage loaded", "contract", c.contractID, "stage", target, "persisted", ok)
	c.apply(target, false, events.SourceDerived, false)
	return nil
}

// derive picks the stage a contract should be in when nobody asked for one.
func derive(persisted *core.StageRecord, hasDesigner, hasContent bool) core.Stage {
	switch {
	case !hasContent:
		return core.StageEdit
	case persisted != nil && persisted.ExplicitIntent && persisted.Stage == core.StageEdit:
		return core.StageEdit
	case hasDesigner:
		return core.StageSend
	case persisted == nil || !persisted.Stage.Valid():
		return core.StageEdit
	case persisted.Stage == core.StageSend:
		return core.StageSign
	default:
		return persisted.Stage
	}
}

// Transition moves the machine to target.
//
// Without content every target but edit fails with core.ErrValidation and
// the machine is forced back to edit. Returning to edit over a designer
// signature needs an explicit intent, and removes that signature first.
// Send always needs the designer signature, including while already in send.
func (c *Controller) Transition(ctx context.Context, target core.Stage, intent Intent) error {
	if !target.Valid() {
		return fmt.Errorf("transition %s: unknown stage %q: %w", c.contractID, target, core.ErrValidation)
	}
	from := c.Stage()

	if target != core.StageEdit && !core.HasContent(c.content()) {
		if from != core.StageEdit {
			c.apply(core.StageEdit, false, events.SourceDerived, false)
		}
		return fmt.Errorf("transition %s to %s: contract has no content: %w", c.contractID, target, core.ErrValidation)
	}
	if target == from && target == core.StageSign {
		return nil
	}

	switch target {
	case core.StageSign:
		if from != core.StageEdit {
			return fmt.Errorf("transition %s from %s to %s: %w", c.contractID, from, target, core.ErrInvalidTransition)
		}

	case core.StageSend:
		if from != core.StageSign && from != core.StageSend {
			return fmt.Errorf("transition %s from %s to %s: %w", c.contractID, from, target, core.ErrInvalidTransition)
		}
		sigs, err := c.sigs.Signatures(ctx, c.contractID)
		if err != nil {
			return fmt.Errorf("transition %s to %s: %w", c.contractID, target, err)
		}
		if !sigs.HasDesigner() {
			if from == core.StageSend {
				c.apply(core.StageEdit, false, events.SourceSignature, false)
			}
			return fmt.Errorf("transition %s to %s: designer has not signed: %w", c.contractID, target, core.ErrInvalidTransition)
		}
		if from == core.StageSend {
			return nil
		}

	case core.StageEdit:
		sigs, err := c.sigs.Signatures(ctx, c.contractID)
		if err != nil {
			return fmt.Errorf("transition %s to %s: %w", c.contractID, target, err)
		}
		if sigs.HasDesigner() {
			if !intent.Explicit {
				return fmt.Errorf("transition %s to %s: designer signature must be removed: %w", c.contractID, target, core.ErrConfirmationRequired)
			}
			if err := c.unlock(ctx); err != nil {
				// The signature may be gone even though the unsign failed
				// afterwards. Without it the contract belongs in edit.
				if after, readErr := c.sigs.Signatures(ctx, c.contractID); readErr == nil && !after.HasDesigner() {
					c.apply(core.StageEdit, true, events.SourceUser, true)
				}
				return fmt.Errorf("transition %s to %s: %w", c.contractID, target, err)
			}
		}
	}

	c.apply(target, true, events.SourceUser, intent.Explicit && target == core.StageEdit)
	return nil
}

// unlock removes the designer signature. Signature events it causes are
// ignored by this controller, the caller decides the resulting stage.
func (c *Controller) unlock(ctx context.Context) error {
	c.mu.Lock()
	c.unlocking = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.unlocking = false
		c.mu.Unlock()
	}()
	return c.sigs.Unsign(ctx, c.contractID, core.RoleDesigner)
}

// apply sets, persists and announces the stage. It must not be called with
// c.mu held since the bus delivers synchronously.
func (c *Controller) apply(stage core.Stage, confirmed bool, source string, explicit bool) {
	c.mu.Lock()
	from := c.stage
	c.stage = stage
	c.mu.Unlock()

	now := c.clock.Now()
	rec := core.StageRecord{ContractID: c.contractID, Stage: stage, LastUpdated: now, ExplicitIntent: explicit}
	if err := c.records.Set(cache.StageKey(c.contractID), core.CacheEntry[core.StageRecord]{
		Value:       rec,
		LastUpdated: now,
		Source:      core.SourceLocal,
	}); err != nil {
		c.logger.Warn("failed to persist stage", "contract", c.contractID, "stage", stage, "error", err)
	}

	c.logger.Debug("stage changed", "contract", c.contractID, "from", from, "to", stage, "source", source)
	c.bus.Publish(events.TopicStageChanged, events.StageChanged{
		ContractID: c.contractID,
		Stage:      stage,
		Confirmed:  confirmed,
		Source:     source,
	})
}

func (c *Controller) onSignatureChanged(e events.SignatureChanged) {
	if e.ContractID != c.contractID || e.Role != core.RoleDesigner {
		return
	}
	c.mu.Lock()
	from, unlocking := c.stage, c.unlocking
	c.mu.Unlock()
	if unlocking {
		return
	}

	if !e.HasDesignerSignature {
		if from != core.StageEdit {
			c.apply(core.StageEdit, false, events.SourceSignature, false)
		}
		return
	}
	target := derive(&core.StageRecord{Stage: from}, true, core.HasContent(c.content()))
	if target != from {
		c.apply(target, false, events.SourceSignature, false)
	}
}

// Reload re-reads the persisted stage after another process changed it.
// A persisted send is only adopted while the designer signature stands;
// otherwise the stage is derived as Load would.
func (c *Controller) Reload(ctx context.Context) {
	rec, ok, err := c.records.Get(cache.StageKey(c.contractID))
	if err != nil || !ok || !rec.Value.Stage.Valid() {
		return
	}
	target := rec.Value.Stage
	if target == core.StageSend {
		sigs, err := c.sigs.Signatures(ctx, c.contractID)
		if err != nil {
			c.logger.Warn("cannot verify reloaded stage, keeping current", "contract", c.contractID, "stage", target, "error", err)
			return
		}
		if !sigs.HasDesigner() {
			target = derive(&rec.Value, false, core.HasContent(c.content()))
		}
	}

	c.mu.Lock()
	changed := c.stage != target
	c.stage = target
	c.mu.Unlock()
	if !changed {
		return
	}
	c.logger.Debug("stage reloaded", "contract", c.contractID, "stage", target, "persisted", rec.Value.Stage)
	c.bus.Publish(events.TopicStageChanged, events.StageChanged{
		ContractID: c.contractID,
		Stage:      target,
		Confirmed:  rec.Value.ExplicitIntent,
		Source:     events.SourceExternal,
	})
}

// Close stops following signature changes.
func (c *Controller) Close() {
	c.unsubscribe()
}
