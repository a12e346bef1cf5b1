package diagnostic_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sjalander/jlmgo/diagnostic"
)

func TestInvariantViolationError(t *testing.T) {
	t.Parallel()

	err := &diagnostic.InvariantViolation{Where: "region.lower", Msg: "dangling operand"}
	require.EqualError(t, err, `invariant violation in region.lower: dangling operand`)
}

func TestUnsupportedConstructError(t *testing.T) {
	t.Parallel()

	err := &diagnostic.UnsupportedConstruct{Construct: "generic function", Where: "cmd/jlmgo"}
	require.EqualError(t, err, `unsupported construct "generic function" in cmd/jlmgo`)
}

func TestMalformedInputError(t *testing.T) {
	t.Parallel()

	err := &diagnostic.MalformedInput{Detail: "missing entry block"}
	require.EqualError(t, err, "malformed input: missing entry block")
}
