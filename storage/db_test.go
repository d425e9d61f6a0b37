package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBRoundTrip(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("alpha"), []byte("1")))

	got, err := db.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	missing, err := db.Get([]byte("beta"))
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, db.Delete([]byte("alpha")))
	got, err = db.Get([]byte("alpha"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMemDBValueIsolation(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte("original")
	require.NoError(t, db.Put([]byte("k"), value))
	value[0] = 'X'

	got, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again)
}

func TestMemDBIteratePrefixOrdered(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("listing/2"), []byte("b")))
	require.NoError(t, db.Put([]byte("listing/1"), []byte("a")))
	require.NoError(t, db.Put([]byte("listing/3"), []byte("c")))
	require.NoError(t, db.Put([]byte("stake/1"), []byte("z")))

	var keys []string
	err := db.IteratePrefix([]byte("listing/"), func(key, value []byte) bool {
		keys = append(keys, string(key))
		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{"listing/1", "listing/2", "listing/3"}, keys)
}

func TestMemDBIteratePrefixEarlyStop(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("ev/1"), []byte("a")))
	require.NoError(t, db.Put([]byte("ev/2"), []byte("b")))
	require.NoError(t, db.Put([]byte("ev/3"), []byte("c")))

	var visited int
	err := db.IteratePrefix([]byte("ev/"), func(key, value []byte) bool {
		visited++
		return visited < 2
	})
	require.NoError(t, err)
	require.Equal(t, 2, visited)
}
