package timing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClockCycles(t *testing.T) {
	assert.Equal(t, int64(123), ClockCycles(3e-7))
	assert.Equal(t, int64(4096), ClockCycles(10e-6))
	assert.Equal(t, int64(-410), ClockCycles(-1e-6))
}

func TestDelayMapPositiveGlobal(t *testing.T) {
	m := NewDelayMap(40)

	assert.Equal(t, int64(40), m.Delay(0))
	assert.Equal(t, int64(0), m.Delay(1))
	assert.Equal(t, int64(0), m.Delay(7))
}

func TestDelayMapNegativeGlobalSwapsChannels(t *testing.T) {
	m := NewDelayMap(-40)

	assert.Equal(t, int64(0), m.Delay(0))
	assert.Equal(t, int64(40), m.Delay(1))
	assert.Equal(t, int64(40), m.Delay(15))
}

func TestDelayMapOverrides(t *testing.T) {
	m := NewDelayMapSeconds(-1e-6)
	m.Set(0, 12)
	m.Set(3, 0)

	assert.Equal(t, int64(12), m.Delay(0))
	assert.Equal(t, int64(410), m.Delay(2))
	assert.Equal(t, int64(0), m.Delay(3))
}
