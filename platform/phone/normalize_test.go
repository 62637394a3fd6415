package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestE164(t *testing.T) {
	n := NewNormalizer("in")

	got, err := n.E164(" 98765 43210 ")
	require.NoError(t, err)
	assert.Equal(t, "+919876543210", got)

	got, err = n.E164("+31 6 12345678")
	require.NoError(t, err)
	assert.Equal(t, "+31612345678", got)

	got, err = n.E164("")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = n.E164("12")
	assert.ErrorIs(t, err, ErrInvalid)
}
