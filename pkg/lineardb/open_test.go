package lineardb

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Open_Recovers_From_Torn_Tail(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "torn.db")

	store, err := Open(Options{Path: path, KeySize: 4, ValueSize: 4})
	require.NoError(t, err)

	require.NoError(t, store.Put([]byte("key1"), []byte("val1")))
	require.NoError(t, store.Put([]byte("key2"), []byte("val2")))
	require.NoError(t, store.Close())

	// Simulate a crash mid-append: append a partial (4-byte) third record.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("half"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	recovered, err := Open(Options{Path: path, KeySize: 4, ValueSize: 4})
	require.NoError(t, err)
	defer recovered.Close()

	require.EqualValues(t, 2, recovered.NumRecords())

	got, err := recovered.Get([]byte("key1"))
	require.NoError(t, err)
	require.Equal(t, []byte("val1"), got)

	got, err = recovered.Get([]byte("key2"))
	require.NoError(t, err)
	require.Equal(t, []byte("val2"), got)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, headerSize+2*8, info.Size(), "torn tail must be truncated away on disk")
}

func Test_Open_Creates_New_File_With_Header(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "fresh.db")

	store, err := Open(Options{Path: path, KeySize: 4, ValueSize: 4, StartBuckets: 4})
	require.NoError(t, err)
	defer store.Close()

	require.EqualValues(t, 4, store.CurrentSize())
	require.EqualValues(t, 0, store.NumRecords())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.EqualValues(t, headerSize, info.Size())
}

func Test_Open_Raises_StartBuckets_Below_Two(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "small.db")

	store, err := Open(Options{Path: path, KeySize: 4, ValueSize: 4, StartBuckets: 1})
	require.NoError(t, err)
	defer store.Close()

	require.EqualValues(t, 2, store.CurrentSize())
}

func Test_Open_Rejects_Invalid_MaxLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "badload.db")

	_, err := Open(Options{Path: path, KeySize: 4, ValueSize: 4, MaxLoad: 1.5})
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = Open(Options{Path: path, KeySize: 4, ValueSize: 4, MaxLoad: -1})
	require.ErrorIs(t, err, ErrInvalidOptions)
}
