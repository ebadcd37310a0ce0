package intercept

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointInstallForwardsToOriginal(t *testing.T) {
	var calls []string
	p := NewPoint("set-pointer-visible", func(v bool) {
		calls = append(calls, "real")
	})

	err := p.Install("cloner", func(orig func(bool)) func(bool) {
		return func(v bool) {
			calls = append(calls, "wrapper")
			orig(v)
		}
	})
	require.NoError(t, err)
	assert.True(t, p.Installed())

	p.Current()(true)
	assert.Equal(t, []string{"wrapper", "real"}, calls)
}

func TestPointRefusesDoubleInstall(t *testing.T) {
	realCalls := 0
	p := NewPoint("set-pointer-visible", func(bool) { realCalls++ })
	wrap := func(orig func(bool)) func(bool) {
		return func(v bool) { orig(v) }
	}

	require.NoError(t, p.Install("a", wrap))
	err := p.Install("b", wrap)
	assert.ErrorIs(t, err, ErrAlreadyInstalled)

	// The second attempt must not have captured the wrapper as original.
	require.NoError(t, p.Uninstall("a"))
	p.Current()(false)
	assert.Equal(t, 1, realCalls)
}

func TestPointUninstall(t *testing.T) {
	p := NewPoint("capture", func() string { return "real" })

	assert.ErrorIs(t, p.Uninstall("a"), ErrNotInstalled)

	require.NoError(t, p.Install("a", func(orig func() string) func() string {
		return func() string { return "wrapped " + orig() }
	}))
	assert.Equal(t, "wrapped real", p.Current()())

	assert.ErrorIs(t, p.Uninstall("b"), ErrNotInstalled)
	require.NoError(t, p.Uninstall("a"))
	assert.Equal(t, "real", p.Current()())
	assert.False(t, p.Installed())

	// A fresh cycle works after a clean uninstall.
	require.NoError(t, p.Install("a", func(orig func() string) func() string { return orig }))
	require.NoError(t, p.Uninstall("a"))
}
