package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/iov-one/cosign/cosigntest/assert"
	"github.com/iov-one/cosign/errors"
	"github.com/iov-one/cosign/store"
	"github.com/stretchr/testify/require"
)

func TestOpenDB(t *testing.T) {
	db, err := openDB("")
	require.NoError(t, err)
	_, ok := db.(*store.MemDB)
	assert.Equal(t, true, ok)

	db, err = openDB(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, db.Close())

	// A regular file cannot hold a badger database.
	path := filepath.Join(t.TempDir(), "cosign.db")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	_, err = openDB(path)
	assert.IsErr(t, errors.ErrDatabase, err)
}
