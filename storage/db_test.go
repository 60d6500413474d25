package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
)

func TestMemDBMissingKey(t *testing.T) {
	db := NewMemDB()
	_, err := db.Get([]byte("absent"))
	require.True(t, IsNotFound(err))

	ok, err := db.Has([]byte("absent"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemDBBatchWrite(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("stale"), []byte("x")))

	batch := new(leveldb.Batch)
	batch.Put([]byte("a"), []byte("1"))
	batch.Put([]byte("b"), []byte("2"))
	batch.Delete([]byte("stale"))
	require.NoError(t, db.Write(batch))

	got, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)
	ok, err := db.Has([]byte("stale"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 2, db.Len())
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	value := []byte("abc")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'z'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestLevelDBBatchPersists(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)

	batch := new(leveldb.Batch)
	batch.Put([]byte("key"), []byte("value"))
	require.NoError(t, db1.Write(batch))
	db1.Close()

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)

	require.NoError(t, db2.Delete([]byte("key")))
	_, err = db2.Get([]byte("key"))
	require.True(t, IsNotFound(err))
}
