package kv_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/castore/kv"
)

func TestNewKey(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		for _, s := range []string{"abcdef", "0", "f", "0123456789abcdef", "00ff"} {
			k, err := kv.NewKey(s)
			require.NoError(t, err, "key %q", s)
			assert.Equal(t, s, k.String())
			assert.False(t, k.IsZero())
		}
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := kv.NewKey("")
		var ike *kv.InvalidKeyError
		require.ErrorAs(t, err, &ike)
		assert.Equal(t, kv.KeyEmpty, ike.Kind)
		assert.Equal(t, -1, ike.Pos)
	})

	t.Run("InvalidCharacter", func(t *testing.T) {
		cases := []struct {
			in  string
			pos int
		}{
			{"BBCDEF", 0}, // upper case is not part of the alphabet
			{"g", 0},
			{"abc-def", 3},
			{"abcdeF", 5},
			{"12 34", 2},
		}
		for _, tc := range cases {
			_, err := kv.NewKey(tc.in)
			var ike *kv.InvalidKeyError
			require.ErrorAs(t, err, &ike, "key %q", tc.in)
			assert.Equal(t, kv.KeyInvalidCharacter, ike.Kind)
			assert.Equal(t, tc.pos, ike.Pos)
		}
	})

	t.Run("ValidationIsPermanentClass", func(t *testing.T) {
		_, err := kv.NewKey("not hex")
		assert.True(t, kv.IsPermanent(err))
		assert.False(t, kv.IsTransient(err))
	})

	t.Run("Comparable", func(t *testing.T) {
		a := kv.MustKey("abc123")
		b := kv.MustKey("abc123")
		assert.Equal(t, a, b)

		m := map[kv.Key]int{a: 1}
		assert.Equal(t, 1, m[b])
	})
}

func TestMustKey_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() { kv.MustKey("XYZ") })
}
