package httpsdk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultStateFile)
	store := NewFileStore(path)

	state, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, state)

	in := &SessionState{Token: "tok", UserID: "u1", AppID: "app", LoggedInAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, store.Save(in))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	out, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, in, out)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear(), "clearing twice is fine")
	out, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultStateFile)
	require.NoError(t, os.WriteFile(path, []byte("token: [unclosed"), 0600))
	_, err := NewFileStore(path).Load()
	assert.Error(t, err)
}

func TestMemoryStoreCopies(t *testing.T) {
	var m MemoryStore
	in := &SessionState{Token: "tok"}
	require.NoError(t, m.Save(in))
	in.Token = "changed"

	out, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", out.Token)

	require.NoError(t, m.Clear())
	out, err = m.Load()
	require.NoError(t, err)
	assert.Nil(t, out)
}
