package passutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/internal/passutil"
)

func TestWrapPassesThroughSuccess(t *testing.T) {
	t.Parallel()

	wrapped := passutil.Wrap("ok", func() (int, error) { return 42, nil })
	v, err := wrapped()
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestWrapPrefixesReturnedError(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("boom")
	wrapped := passutil.Wrap("stage", func() (int, error) { return 0, sentinel })
	_, err := wrapped()
	require.ErrorIs(t, err, sentinel)
	require.Contains(t, err.Error(), "stage")
}

func TestWrapRecoversPanic(t *testing.T) {
	t.Parallel()

	wrapped := passutil.Wrap("crasher", func() (int, error) {
		panic("invariant broke")
	})
	_, err := wrapped()
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "INTERNAL PANIC"))
	require.True(t, strings.Contains(err.Error(), "crasher"))
}
