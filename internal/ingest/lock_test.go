package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ingest.lock")

	first := NewRunLock(path)
	require.NoError(t, first.TryLock())

	second := NewRunLock(path)
	assert.ErrorIs(t, second.TryLock(), ErrRunInProgress)

	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

func TestRunLock_BadPath(t *testing.T) {
	l := NewRunLock(filepath.Join(t.TempDir(), "missing", "dir", "ingest.lock"))
	err := l.TryLock()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRunInProgress)
}
