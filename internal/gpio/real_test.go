//go:build linux

package gpio

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiosim"
)

// newSim creates a gpio-sim chip, skipping when the kernel module or root
// access is unavailable.
func newSim(t *testing.T) (*gpiosim.Simpleton, *RealPlatform) {
	t.Helper()
	s, err := gpiosim.NewSimpleton(8)
	if err != nil {
		t.Skipf("gpio-sim unavailable: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	p, err := NewRealPlatform(s.ChipName())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return s, p
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestRealPlatformOutput(t *testing.T) {
	s, p := newSim(t)

	l, err := p.RequestOutput(2, true)
	require.NoError(t, err)

	level, err := s.Level(2)
	require.NoError(t, err)
	assert.Equal(t, 1, level)

	require.NoError(t, l.SetValue(false))
	level, err = s.Level(2)
	require.NoError(t, err)
	assert.Equal(t, 0, level)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.SetValue(true), ErrClosed)
}

func TestRealPlatformBusy(t *testing.T) {
	_, p := newSim(t)

	_, err := p.RequestOutput(3, false)
	require.NoError(t, err)
	_, err = p.RequestInput(3)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestRealPlatformInvalidPin(t *testing.T) {
	_, p := newSim(t)

	_, err := p.RequestOutput(8, false)
	assert.ErrorIs(t, err, ErrInvalidPin)
}

func TestRealPlatformRisingEdges(t *testing.T) {
	s, p := newSim(t)

	in, err := p.RequestInput(5)
	require.NoError(t, err)

	irq, err := p.MapInterrupt(5)
	require.NoError(t, err)

	var count atomic.Uint64
	intr, err := p.RegisterInterrupt(irq, func() { count.Add(1) })
	require.NoError(t, err)

	_, err = p.RegisterInterrupt(irq, func() {})
	assert.True(t, errors.Is(err, ErrBusy))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Pullup(5))
		require.True(t, waitFor(func() bool { return count.Load() == uint64(i+1) }))
		require.NoError(t, s.Pulldown(5))
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, uint64(3), count.Load())

	require.NoError(t, intr.Close())
	require.NoError(t, s.Pullup(5))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, uint64(3), count.Load())

	require.NoError(t, in.Close())
	_, err = p.MapInterrupt(5)
	assert.ErrorIs(t, err, ErrNoInterrupt)
}
