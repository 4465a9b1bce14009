package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Order
		want int
	}{
		{"both set ascending", At(1), At(2), -1},
		{"both set equal", At(3), At(3), 0},
		{"both set descending", At(5), At(-1), 1},
		{"set before absent", At(100), Order{}, -1},
		{"absent after set", Order{}, At(-100), 1},
		{"both absent", Order{}, Order{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestOrderValue(t *testing.T) {
	v, ok := At(0).Value()
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	_, ok = Order{}.Value()
	assert.False(t, ok)
	assert.Equal(t, "-", Order{}.String())
	assert.Equal(t, "7", At(7).String())
}
