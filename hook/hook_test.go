package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainRunWithoutHooksCallsPrimitive(t *testing.T) {
	var c Chain
	called := 0
	err := c.Run(Target{URL: "https://example.com"}, func() error {
		called++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, called)
	assert.Equal(t, 0, c.Len())
}

func TestChainOrderAndSuppression(t *testing.T) {
	var c Chain
	var order []string

	c.Install(func(t Target, proceed func() error) error {
		order = append(order, "first")
		return proceed()
	})
	c.Install(func(t Target, proceed func() error) error {
		order = append(order, "second")
		return proceed()
	})

	require.NoError(t, c.Run(Target{}, func() error {
		order = append(order, "primitive")
		return nil
	}))
	assert.Equal(t, []string{"second", "first", "primitive"}, order)

	// A hook that does not call proceed suppresses the primitive.
	blocked := &BlockedError{URL: "https://ads.example", Kind: KindFetch}
	c.Install(func(t Target, proceed func() error) error { return blocked })
	reached := false
	err := c.Run(Target{}, func() error {
		reached = true
		return nil
	})
	assert.False(t, reached)
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestChainRestoreIsIdempotent(t *testing.T) {
	var c Chain
	restoreA := c.Install(func(t Target, proceed func() error) error { return proceed() })
	restoreB := c.Install(func(t Target, proceed func() error) error { return proceed() })
	assert.Equal(t, 2, c.Len())

	restoreA()
	restoreA()
	assert.Equal(t, 1, c.Len())

	restoreB()
	assert.Equal(t, 0, c.Len())
}

func TestBlockedError(t *testing.T) {
	var err error = &BlockedError{URL: "https://ads.example/x.js", Kind: KindScript}
	assert.True(t, errors.Is(err, ErrBlocked))
	assert.Equal(t, "ad script blocked: https://ads.example/x.js", err.Error())

	var be *BlockedError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, KindScript, be.Kind)
}

func TestKindIsResource(t *testing.T) {
	assert.True(t, KindScript.IsResource())
	assert.True(t, KindFrame.IsResource())
	assert.False(t, KindFetch.IsResource())
	assert.False(t, KindOther.IsResource())
}
