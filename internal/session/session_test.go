package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAuth struct {
	state State
	err   error
	calls int
	last  Credentials
}

func (m *mockAuth) Login(_ context.Context, c Credentials) (State, error) {
	m.calls++
	m.last = c
	return m.state, m.err
}

type failingStore struct {
	err error
}

func (s failingStore) Load(context.Context) (State, error) { return State{}, s.err }
func (s failingStore) Save(context.Context, State) error   { return s.err }
func (s failingStore) Clear(context.Context) error         { return s.err }

var creds = Credentials{Email: "desk@example.com", Password: "secret"}

func TestManager_Token(t *testing.T) {
	ctx := context.Background()

	t.Run("lazy login persists token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		auth := &mockAuth{state: State{Token: "tok-1", User: json.RawMessage(`{"id":3}`)}}
		m := NewManager(NewFileStore(path), auth, creds)

		tok, err := m.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
		assert.Equal(t, creds, auth.last)

		tok, err = m.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", tok)
		assert.Equal(t, 1, auth.calls)

		// A fresh manager picks the stored session up.
		other := &mockAuth{}
		m2 := NewManager(NewFileStore(path), other, creds)
		st, err := m2.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", st.Token)
		assert.JSONEq(t, `{"id":3}`, string(st.User))
		_, err = m2.Token(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, other.calls)
	})

	t.Run("no credentials", func(t *testing.T) {
		m := NewManager(NewFileStore(filepath.Join(t.TempDir(), "s.json")), &mockAuth{}, Credentials{})
		_, err := m.Token(ctx)
		require.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("login failure", func(t *testing.T) {
		loginErr := errors.New("bad password")
		m := NewManager(NewFileStore(filepath.Join(t.TempDir(), "s.json")), &mockAuth{err: loginErr}, creds)
		_, err := m.Token(ctx)
		require.ErrorIs(t, err, loginErr)
	})

	t.Run("empty token", func(t *testing.T) {
		m := NewManager(NewFileStore(filepath.Join(t.TempDir(), "s.json")), &mockAuth{}, creds)
		_, err := m.Token(ctx)
		require.Error(t, err)
	})

	t.Run("store failure", func(t *testing.T) {
		storeErr := errors.New("disk full")
		m := NewManager(failingStore{err: storeErr}, &mockAuth{state: State{Token: "x"}}, creds)
		_, err := m.Token(ctx)
		require.ErrorIs(t, err, storeErr)
	})
}

func TestManager_Clear(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	auth := &mockAuth{state: State{Token: "tok-1"}}
	m := NewManager(NewFileStore(path), auth, creds)

	_, err := m.Token(ctx)
	require.NoError(t, err)
	require.FileExists(t, path)

	require.NoError(t, m.Clear(ctx))
	assert.NoFileExists(t, path)
	st, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, st.Token)

	auth.state = State{Token: "tok-2"}
	tok, err := m.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, 2, auth.calls)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileStore(filepath.Join(dir, "none.json")).Load(ctx)
		require.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(dir, "corrupt.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
		_, err := NewFileStore(path).Load(ctx)
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrNoSession)
	})

	t.Run("creates parent dir", func(t *testing.T) {
		path := filepath.Join(dir, "nested", "deeper", "s.json")
		s := NewFileStore(path)
		require.NoError(t, s.Save(ctx, State{Token: "abc"}))
		st, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "abc", st.Token)
	})

	t.Run("clear missing is fine", func(t *testing.T) {
		require.NoError(t, NewFileStore(filepath.Join(dir, "gone.json")).Clear(ctx))
	})
}
