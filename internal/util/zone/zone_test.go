package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZone_NestedRunDropped(t *testing.T) {
	var z Zone
	outer, inner := 0, 0

	ran := z.Run(func() {
		outer++
		assert.True(t, z.Held())
		nested := z.Run(func() { inner++ })
		assert.False(t, nested)
	})

	assert.True(t, ran)
	assert.Equal(t, 1, outer)
	assert.Equal(t, 0, inner)
	assert.False(t, z.Held())
}

func TestZone_ReleasedAfterPanic(t *testing.T) {
	var z Zone
	assert.Panics(t, func() {
		z.Run(func() { panic("boom") })
	})
	assert.False(t, z.Held())
	assert.True(t, z.Run(func() {}))
}

func TestZone_Sequential(t *testing.T) {
	var z Zone
	n := 0
	for i := 0; i < 3; i++ {
		assert.True(t, z.Run(func() { n++ }))
	}
	assert.Equal(t, 3, n)
}
