package diagnostic_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/diagnostic"
)

func TestDumpLoadDigraphRoundTrip(t *testing.T) {
	t.Parallel()

	const digraph = "digraph ptg {\n  n0 -> n1;\n}\n"

	var buf bytes.Buffer
	require.NoError(t, diagnostic.DumpDigraph(&buf, digraph))
	require.NotEmpty(t, buf.Bytes())
	require.NotEqual(t, digraph, buf.String()) // compressed, not the raw text

	got, err := diagnostic.LoadDigraph(&buf)
	require.NoError(t, err)
	require.Equal(t, digraph, got)
}

func TestDumpEmptyDigraph(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, diagnostic.DumpDigraph(&buf, ""))

	got, err := diagnostic.LoadDigraph(&buf)
	require.NoError(t, err)
	require.Equal(t, "", got)
}

func TestLoadDigraphRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := diagnostic.LoadDigraph(bytes.NewReader([]byte("not zstd data")))
	require.Error(t, err)
}
