package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, db.Put([]byte("vault/a"), []byte("1")))
	require.NoError(t, db.Put([]byte("vault/b"), []byte("2")))
	require.NoError(t, db.Put([]byte("bank/a"), []byte("3")))

	value, err := db.Get([]byte("vault/a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	keys, err := db.Keys([]byte("vault/"))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("vault/a"), []byte("vault/b")}, keys)

	batch := db.NewBatch()
	batch.Put([]byte("vault/c"), []byte("4"))
	batch.Delete([]byte("vault/a"))
	require.Equal(t, 2, batch.Len())

	// Nothing is visible before Write.
	_, err = db.Get([]byte("vault/c"))
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, batch.Write())
	_, err = db.Get([]byte("vault/a"))
	require.True(t, errors.Is(err, ErrNotFound))
	value, err = db.Get([]byte("vault/c"))
	require.NoError(t, err)
	require.Equal(t, []byte("4"), value)

	require.NoError(t, db.Delete([]byte("vault/b")))
	keys, err = db.Keys([]byte("vault/"))
	require.NoError(t, err)
	require.Len(t, keys, 1)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	buf := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), buf))
	buf[0] = 'z'
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), value)
}

func TestLevelDB(t *testing.T) {
	db, err := NewLevelDB(filepath.Join(t.TempDir(), "vault"))
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestBoltDB(t *testing.T) {
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "vault.db"), nil)
	require.NoError(t, err)
	defer db.Close()
	exerciseDatabase(t, db)
}

func TestOpenBackends(t *testing.T) {
	for _, backend := range []string{"", BackendLevelDB, BackendBolt} {
		db, err := Open(backend, filepath.Join(t.TempDir(), "data"))
		require.NoError(t, err, backend)
		require.NoError(t, db.Put([]byte("k"), []byte("v")))
		db.Close()
	}
	_, err := Open("rocksdb", t.TempDir())
	require.Error(t, err)
}
