package config_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/config"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	c := config.Default()
	require.Equal(t, config.MinIRVersion, c.MinIRVersion)
	require.False(t, c.DumpDigraphs)
	require.Empty(t, c.DigraphDir)
}

func TestLoadFillsDefaultMinIRVersion(t *testing.T) {
	t.Parallel()

	c, err := config.Load(strings.NewReader(`dumpDigraphs: true
digraphDir: /tmp/ptg
`))
	require.NoError(t, err)
	require.True(t, c.DumpDigraphs)
	require.Equal(t, "/tmp/ptg", c.DigraphDir)
	require.Equal(t, config.MinIRVersion, c.MinIRVersion)
}

func TestLoadHonorsExplicitMinIRVersion(t *testing.T) {
	t.Parallel()

	c, err := config.Load(strings.NewReader(`minIRVersion: v0.5.0
`))
	require.NoError(t, err)
	require.Equal(t, "v0.5.0", c.MinIRVersion)
}

func TestLoadEmptyDocument(t *testing.T) {
	t.Parallel()

	c, err := config.Load(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, config.MinIRVersion, c.MinIRVersion)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := config.Load(strings.NewReader("not: [valid"))
	require.Error(t, err)
}

func TestRequireMinIRVersion(t *testing.T) {
	t.Parallel()

	c := config.Default()

	require.NoError(t, c.RequireMinIRVersion("v0.1.0"))
	require.NoError(t, c.RequireMinIRVersion("v1.2.3"))

	err := c.RequireMinIRVersion("")
	require.Error(t, err)

	err = c.RequireMinIRVersion("not-a-version")
	require.Error(t, err)

	err = c.RequireMinIRVersion("v0.0.1")
	require.Error(t, err)
}

func TestRequireMinIRVersionRejectsBadFloor(t *testing.T) {
	t.Parallel()

	c := &config.Config{MinIRVersion: "garbage"}
	err := c.RequireMinIRVersion("v1.0.0")
	require.Error(t, err)
}
