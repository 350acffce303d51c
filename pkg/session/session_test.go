package session_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/contractflow/pkg/adapters/memory"
	"github.com/aretw0/contractflow/pkg/cache"
	"github.com/aretw0/contractflow/pkg/clock"
	"github.com/aretw0/contractflow/pkg/core"
	"github.com/aretw0/contractflow/pkg/events"
	"github.com/aretw0/contractflow/pkg/session"
	"github.com/aretw0/contractflow/pkg/signature"
	"github.com/aretw0/contractflow/pkg/stage"
)

type fixture struct {
	store *memory.Store
	cache *cache.Cache
	clock *clock.Fake
	buf   *session.Buffer
	id    string
}

func newFixture(t *testing.T, content string) *fixture {
	t.Helper()
	f := &fixture{
		store: memory.NewStore(),
		cache: cache.NewMemory(),
		clock: clock.NewFake(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)),
	}
	repo := core.NewContractRepository(f.store, core.StaticIdentity("owner"), core.WithClock(f.clock))
	id, err := repo.Save(context.Background(), core.Contract{OwnerID: "owner", Content: []byte(content)})
	require.NoError(t, err)
	f.id = id
	f.buf = session.NewBuffer([]byte(content))
	return f
}

func (f *fixture) open(t *testing.T, opts ...session.Option) *session.Session {
	t.Helper()
	opts = append([]session.Option{session.WithClock(f.clock)}, opts...)
	s, err := session.Open(context.Background(), f.id, session.Deps{
		Store:    f.store,
		Identity: core.StaticIdentity("owner"),
		Cache:    f.cache,
		Editor:   f.buf,
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func (f *fixture) remoteContent(t *testing.T) string {
	t.Helper()
	c, err := f.store.GetContract(context.Background(), f.id)
	require.NoError(t, err)
	return string(c.Content)
}

func TestOpen(t *testing.T) {
	f := newFixture(t, "scope")
	s := f.open(t)

	assert.Equal(t, f.id, s.ID())
	assert.Equal(t, core.StageEdit, s.Stage())
	assert.False(t, s.ReadOnly())
	assert.False(t, f.buf.ReadOnly())
}

func TestOpen_MissingContract(t *testing.T) {
	f := newFixture(t, "scope")
	_, err := session.Open(context.Background(), "missing", session.Deps{
		Store: f.store, Identity: core.StaticIdentity("owner"), Cache: f.cache,
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestOpen_DefaultEditorHoldsStoredContent(t *testing.T) {
	f := newFixture(t, "stored terms")
	s, err := session.Open(context.Background(), f.id, session.Deps{
		Store: f.store, Identity: core.StaticIdentity("owner"), Cache: f.cache,
	})
	require.NoError(t, err)
	defer s.Close(context.Background())
	assert.Equal(t, []byte("stored terms"), s.Editor().Content())
}

func TestAutosave(t *testing.T) {
	f := newFixture(t, "v1")
	f.open(t)

	require.NoError(t, f.buf.Write([]byte("v2")))
	require.NoError(t, f.buf.Write([]byte("v3")))
	assert.Equal(t, "v1", f.remoteContent(t))

	f.clock.Advance(session.DefaultAutosaveDelay)
	assert.Equal(t, "v3", f.remoteContent(t))
}

func TestClose_FlushesPendingContent(t *testing.T) {
	f := newFixture(t, "v1")
	s := f.open(t, session.WithAutosaveDelay(time.Hour))

	require.NoError(t, f.buf.Write([]byte("final")))
	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, "final", f.remoteContent(t))
	require.NoError(t, s.Close(context.Background()))

	require.NoError(t, f.buf.Write([]byte("after close")))
	f.clock.Advance(time.Hour)
	assert.Equal(t, "final", f.remoteContent(t))
}

func TestSignLocksEditor(t *testing.T) {
	f := newFixture(t, "design brief")
	s := f.open(t)
	ctx := context.Background()

	require.NoError(t, s.Sign(ctx, core.RoleDesigner, signature.Data{Name: "Alice"}))

	sigs, err := s.Signatures(ctx)
	require.NoError(t, err)
	require.NotNil(t, sigs.Designer)
	assert.Equal(t, "Alice", sigs.Designer.Name)
	assert.Nil(t, sigs.Client)
	assert.False(t, stage.CanEdit(core.StageEdit, true, false))

	assert.True(t, s.ReadOnly())
	assert.ErrorIs(t, f.buf.Write([]byte("sneaky edit")), core.ErrReadOnly)
	assert.Equal(t, "design brief", f.remoteContent(t))
}

func TestUnsignDesigner(t *testing.T) {
	f := newFixture(t, "design brief")
	s := f.open(t)
	ctx := context.Background()
	require.NoError(t, s.Sign(ctx, core.RoleDesigner, signature.Data{Name: "Alice"}))
	require.Equal(t, core.StageSend, s.Stage())

	assert.ErrorIs(t, s.Unsign(ctx, core.RoleDesigner, false), core.ErrConfirmationRequired)
	assert.True(t, s.ReadOnly())

	require.NoError(t, s.Unsign(ctx, core.RoleDesigner, true))
	sigs, err := s.Signatures(ctx)
	require.NoError(t, err)
	assert.Nil(t, sigs.Designer)
	assert.Equal(t, core.StageEdit, s.Stage())
	assert.False(t, s.ReadOnly())

	rec, ok, err := cache.NewTyped[core.StageRecord](f.cache).Get(cache.StageKey(f.id))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, core.StageEdit, rec.Value.Stage)
}

func TestExplicitEditUnlocks(t *testing.T) {
	f := newFixture(t, "design brief")
	s := f.open(t)
	ctx := context.Background()
	require.NoError(t, s.Sign(ctx, core.RoleDesigner, signature.Data{Name: "Alice"}))

	assert.ErrorIs(t, s.Transition(ctx, core.StageEdit, stage.Intent{}), core.ErrConfirmationRequired)
	require.NoError(t, s.Transition(ctx, core.StageEdit, stage.Intent{Explicit: true}))

	assert.False(t, s.ReadOnly())
	require.NoError(t, f.buf.Write([]byte("revised brief")))
	require.NoError(t, s.Flush())
	assert.Equal(t, "revised brief", f.remoteContent(t))

	c, err := s.Contract(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDraft, c.Status)
}

func TestTransitionSavesPendingContent(t *testing.T) {
	f := newFixture(t, "draft")
	s := f.open(t)

	require.NoError(t, f.buf.Write([]byte("ready to sign")))
	require.NoError(t, s.Transition(context.Background(), core.StageSign, stage.Intent{}))
	assert.Equal(t, "ready to sign", f.remoteContent(t))
	assert.Equal(t, core.StageSign, s.Stage())
}

func TestStatus(t *testing.T) {
	f := newFixture(t, "terms")
	s := f.open(t)
	ctx := context.Background()

	res, err := s.UpdateStatus(ctx, core.StatusPending, core.Metadata{UserAgent: "cli"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	view, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, view.Status)
}

func TestState(t *testing.T) {
	f := newFixture(t, "terms")
	s := f.open(t)

	st, ok := s.State().(session.State)
	require.True(t, ok)
	assert.Equal(t, f.id, st.ContractID)
	assert.Equal(t, core.StageEdit, st.Stage)
	assert.Equal(t, "session", s.ComponentType())
}

type topicSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *topicSink) add(e events.CacheChanged) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, e.Key)
}

func (s *topicSink) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k == key {
			return true
		}
	}
	return false
}

func TestCacheWatch_FollowsOtherProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	f := newFixture(t, "terms")
	var err error
	f.cache, err = cache.Open(path)
	require.NoError(t, err)

	s := f.open(t, session.WithCacheWatch(true))
	sink := &topicSink{}
	events.On(s.Bus(), events.TopicCacheChanged, sink.add)

	other, err := cache.Open(path)
	require.NoError(t, err)
	require.NoError(t, cache.NewTyped[core.StageRecord](other).Set(cache.StageKey(f.id), core.CacheEntry[core.StageRecord]{
		Value:       core.StageRecord{ContractID: f.id, Stage: core.StageSign, LastUpdated: time.Now()},
		LastUpdated: time.Now(),
		Source:      core.SourceLocal,
	}))

	assert.Eventually(t, func() bool {
		return sink.has(cache.StageKey(f.id)) && s.Stage() == core.StageSign
	}, 5*time.Second, 20*time.Millisecond)
}
