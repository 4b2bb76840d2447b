package waitfd

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitTimeout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	res, err := Wait(int(r.Fd()), 20)
	require.NoError(t, err)
	assert.Equal(t, Timeout, res)
}

func TestWaitFdReady(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	go func() {
		time.Sleep(5 * time.Millisecond)
		_, _ = w.Write([]byte("x"))
	}()

	res, err := Wait(int(r.Fd()), 1000)
	require.NoError(t, err)
	assert.Equal(t, FdReady, res)
}
