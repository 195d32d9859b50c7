package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadingQuantity(t *testing.T) {
	tests := []struct {
		in       string
		wantN    int
		wantRest string
	}{
		{"two plain bagels", 2, "plain bagels"},
		{"a latte", 1, "latte"},
		{"an everything bagel", 1, "everything bagel"},
		{"3 cookies", 3, "cookies"},
		{"a couple of bagels", 2, "bagels"},
		{"a dozen bagels", 12, "bagels"},
		{"half a dozen bagels", 6, "bagels"},
		{"a few cookies", 3, "cookies"},
		{"plain bagel", 1, "plain bagel"},
		{"  twelve donuts ", 12, "donuts"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			n, rest := leadingQuantity(tt.in)
			assert.Equal(t, tt.wantN, n)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestQuantityWord(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"two", 2},
		{"TEN", 10},
		{"7", 7},
		{"couple", 2},
		{"dozen", 12},
		{"zero", 1},
		{"-3", 1},
		{"bagel", 1},
		{"", 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, quantityWord(tt.in), "input %q", tt.in)
	}
}

func TestOrdinalIndex(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"the first one", 1, true},
		{"second", 2, true},
		{"the third", 3, true},
		{"The Second One", 2, true},
		{"former", 1, true},
		{"latter", 2, true},
		{"2", 2, true},
		{"neither", 0, false},
		{"plain", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := OrdinalIndex(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
