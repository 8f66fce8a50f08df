package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemory()

	_, err := s.Get(KeyIDToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(KeyIDToken, "header.payload.sig"))
	got, err := s.Get(KeyIDToken)
	require.NoError(t, err)
	assert.Equal(t, "header.payload.sig", got)

	require.NoError(t, s.Delete(KeyIDToken))
	require.NoError(t, s.Delete(KeyIDToken))
	_, err = s.Get(KeyIDToken)
	assert.ErrorIs(t, err, ErrNotFound)
}
