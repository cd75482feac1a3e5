package perflock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_DetectsSentinelCreationAndRemoval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bc250-max-performance")

	flag := &Flag{}
	w := NewWatcher(path, 5*time.Millisecond, flag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	assert.Eventually(t, func() bool { return !flag.Get() }, 200*time.Millisecond, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(path, nil, 0644))
	assert.Eventually(t, func() bool { return flag.Get() }, 200*time.Millisecond, 5*time.Millisecond)

	require.NoError(t, os.Remove(path))
	assert.Eventually(t, func() bool { return !flag.Get() }, 200*time.Millisecond, 5*time.Millisecond)
}
