package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/tradesync/internal/events"
	"github.com/betbot/tradesync/pkg/secretstore"
)

func newTestManager(t *testing.T) (*Manager, *secretstore.Store) {
	t.Helper()
	kv, err := secretstore.Open(secretstore.OpenOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return NewManager(kv), kv
}

func TestManager_SetAndClear(t *testing.T) {
	m, _ := newTestManager(t)

	assert.False(t, m.IsAuthenticated())
	_, ok := m.GetUser()
	assert.False(t, ok)

	require.NoError(t, m.SetSession("tok-1", User{ID: "u1", Username: "alice"}))
	assert.True(t, m.IsAuthenticated())

	token, ok := m.GetToken()
	require.True(t, ok)
	assert.Equal(t, "tok-1", token)
	u, ok := m.GetUser()
	require.True(t, ok)
	assert.Equal(t, "alice", u.Username)

	require.NoError(t, m.ClearSession())
	require.NoError(t, m.ClearSession())
	assert.False(t, m.IsAuthenticated())
	_, ok = m.GetUser()
	assert.False(t, ok)
}

func TestManager_RejectsEmptyToken(t *testing.T) {
	m, _ := newTestManager(t)
	require.Error(t, m.SetSession("  ", User{ID: "u1"}))
	assert.False(t, m.IsAuthenticated())
}

func TestManager_HalfWrittenPairIsAbsent(t *testing.T) {
	m, kv := newTestManager(t)

	// 只有 token 没有 user：不应被视为已登录
	require.NoError(t, kv.SetString(TokenKey, "orphan"))
	assert.False(t, m.IsAuthenticated())
	_, ok := m.GetToken()
	assert.False(t, ok)

	// user 损坏同样视为未登录
	require.NoError(t, kv.SetString(UserKey, "{not json"))
	assert.False(t, m.IsAuthenticated())
}

func TestManager_PersistsAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	kv, err := secretstore.Open(secretstore.OpenOptions{Path: dir})
	require.NoError(t, err)
	require.NoError(t, NewManager(kv).SetSession("tok", User{ID: "u1", Username: "bob"}))
	require.NoError(t, kv.Close())

	kv, err = secretstore.Open(secretstore.OpenOptions{Path: dir})
	require.NoError(t, err)
	defer kv.Close()

	m := NewManager(kv)
	assert.True(t, m.IsAuthenticated())
	u, ok := m.GetUser()
	require.True(t, ok)
	assert.Equal(t, "bob", u.Username)
}

func TestManager_InvalidateClearsAndEmits(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.SetSession("tok", User{ID: "u1"}))

	var got []events.SessionInvalidatedEvent
	remove := m.OnInvalidated(func(ev events.SessionInvalidatedEvent) { got = append(got, ev) })
	var reasons []events.InvalidationReason
	m.OnInvalidate = func(r events.InvalidationReason) { reasons = append(reasons, r) }

	m.Invalidate(events.SessionInvalidatedEvent{Reason: events.ReasonUnauthorized, Path: "/positions"})

	assert.False(t, m.IsAuthenticated())
	require.Len(t, got, 1)
	assert.Equal(t, events.ReasonUnauthorized, got[0].Reason)
	assert.Equal(t, "/positions", got[0].Path)
	assert.False(t, got[0].Timestamp.IsZero())
	assert.Equal(t, []events.InvalidationReason{events.ReasonUnauthorized}, reasons)

	remove()
	m.Invalidate(events.SessionInvalidatedEvent{Reason: events.ReasonCleared})
	assert.Len(t, got, 1)
}

type failingKV struct{}

func (failingKV) GetMany(keys ...string) (map[string]string, error) {
	return nil, errors.New("disk gone")
}
func (failingKV) SetMany(map[string]string) error { return errors.New("disk gone") }
func (failingKV) DeleteMany(...string) error      { return errors.New("disk gone") }

func TestManager_StorageFailures(t *testing.T) {
	m := NewManager(failingKV{})

	assert.False(t, m.IsAuthenticated())
	require.Error(t, m.SetSession("tok", User{}))
	require.Error(t, m.ClearSession())

	emitted := 0
	m.OnInvalidated(func(events.SessionInvalidatedEvent) { emitted++ })
	m.Invalidate(events.SessionInvalidatedEvent{Reason: events.ReasonUnauthorized})
	assert.Equal(t, 1, emitted)
}
