package authstate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	_, err := FromContext(context.Background())
	assert.ErrorIs(t, err, ErrNoProvider)

	s := New(newFakeSource())
	defer s.Close()

	ctx := WithStore(context.Background(), s)
	got, err := FromContext(ctx)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Same(t, s, MustFromContext(ctx))
}

func TestMustFromContextPanicsOutsideProvider(t *testing.T) {
	assert.PanicsWithValue(t, ErrNoProvider, func() {
		MustFromContext(context.Background())
	})
}
