package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsScalars(t *testing.T) {
	n, err := As[int](int64(12))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	s, err := As[string]("woods")
	require.NoError(t, err)
	assert.Equal(t, "woods", s)

	card, err := As[testCard]("FAVOR")
	require.NoError(t, err)
	assert.Equal(t, cardFavor, card)

	zero, err := As[int](nil)
	require.NoError(t, err)
	assert.Equal(t, 0, zero)
}

func TestAsOverflow(t *testing.T) {
	_, err := As[int8](int64(300))
	require.Error(t, err)

	_, err = As[uint](int64(-1))
	require.Error(t, err)
}

func TestAsCollections(t *testing.T) {
	rolls, err := As[[]int]([]any{int64(3), int64(1)})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, rolls)

	counts, err := As[map[string]int](map[string]any{"a": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2}, counts)

	cards, err := As[[]testCard]([]any{cardAmbush, cardFavor})
	require.NoError(t, err)
	assert.Equal(t, []testCard{cardAmbush, cardFavor}, cards)
}

func TestAsEntityAndNil(t *testing.T) {
	p := &testPlayer{ID: 3}
	got, err := As[*testPlayer](p)
	require.NoError(t, err)
	assert.Same(t, p, got)

	missing, err := As[*testPlayer](nil)
	require.NoError(t, err)
	assert.Nil(t, missing)

	asEntity, err := As[Entity](p)
	require.NoError(t, err)
	assert.Equal(t, int64(3), asEntity.EntityID())
}

func TestAsMismatch(t *testing.T) {
	_, err := As[int]("three")
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeConversion, ce.Code)
}
