package main

import (
	"fmt"
	gotypes "go/types"

	"github.com/sjalander/jlmgo/diagnostic"
	"github.com/sjalander/jlmgo/types"
)

// pointerWidth is the bit width this driver assumes for the host's
// machine-word-sized integer kinds (int, uint, uintptr) and for every
// pointer value, matching a 64-bit target triple (the only kind of target
// the example front end configures, via the ipgraph.Module.TargetTriple that
// buildModule sets).
const pointerWidth = 64

// convertType maps a go/types.Type reachable from ordinary Go source into
// this module's closed type vocabulary (types.Type). Constructs with no
// faithful representation in that vocabulary - slices, maps, channels,
// interfaces, generics, strings - are reported as diagnostic.
// UnsupportedConstruct rather than approximated, per §9's guidance that an
// unsupported construct should fail loudly instead of being silently
// mistranslated.
func convertType(t gotypes.Type) (types.Type, error) {
	switch u := t.Underlying().(type) {
	case *gotypes.Basic:
		return convertBasic(u)

	case *gotypes.Pointer:
		elem, err := convertType(u.Elem())
		if err != nil {
			return nil, err
		}
		return types.PointerType{Pointee: elem}, nil

	case *gotypes.Struct:
		fields := make([]types.Type, u.NumFields())
		for i := range fields {
			ft, err := convertType(u.Field(i).Type())
			if err != nil {
				return nil, err
			}
			fields[i] = ft
		}
		return types.RecordType{Fields: fields}, nil

	case *gotypes.Array:
		elem, err := convertType(u.Elem())
		if err != nil {
			return nil, err
		}
		return types.ArrayType{Element: elem, Length: int(u.Len())}, nil

	case *gotypes.Signature:
		return convertSignature(u)

	default:
		return nil, &diagnostic.UnsupportedConstruct{Construct: fmt.Sprintf("type %s", t.String()), Where: "convertType"}
	}
}

// convertValueType converts the static type of an ssa.Value. A bare
// *gotypes.Signature means the value itself is a first-class function
// designator (as opposed to a call site's own signature), which this
// module's vocabulary represents the same way region.LambdaNode does: a
// pointer to the function type.
func convertValueType(t gotypes.Type) (types.Type, error) {
	if sig, ok := t.Underlying().(*gotypes.Signature); ok {
		ft, err := convertSignature(sig)
		if err != nil {
			return nil, err
		}
		return types.PointerType{Pointee: ft}, nil
	}
	return convertType(t)
}

func convertSignature(sig *gotypes.Signature) (types.FunctionType, error) {
	if sig.Recv() != nil {
		return types.FunctionType{}, &diagnostic.UnsupportedConstruct{Construct: "method-valued signature", Where: "convertSignature"}
	}
	args := make([]types.Type, sig.Params().Len())
	for i := range args {
		at, err := convertType(sig.Params().At(i).Type())
		if err != nil {
			return types.FunctionType{}, err
		}
		args[i] = at
	}
	results := make([]types.Type, sig.Results().Len())
	for i := range results {
		rt, err := convertType(sig.Results().At(i).Type())
		if err != nil {
			return types.FunctionType{}, err
		}
		results[i] = rt
	}
	return types.FunctionType{Args: args, Results: results, VarArgs: sig.Variadic()}, nil
}

func convertBasic(b *gotypes.Basic) (types.Type, error) {
	info := b.Info()
	switch {
	case info&gotypes.IsBoolean != 0:
		return types.BitType{Width: 1}, nil
	case info&gotypes.IsInteger != 0:
		return types.BitType{Width: integerWidth(b.Kind())}, nil
	case info&gotypes.IsFloat != 0:
		switch b.Kind() {
		case gotypes.Float32:
			return types.FloatType{Format: types.Single}, nil
		default:
			return types.FloatType{Format: types.Double}, nil
		}
	default:
		// Strings, complex numbers and unsafe.Pointer are deliberately left
		// unsupported: this module's vocabulary has no string/complex type,
		// and unsafe.Pointer's whole point (untyped aliasing) is exactly
		// what Steensgaard analysis over typed operators cannot host.
		return nil, &diagnostic.UnsupportedConstruct{Construct: fmt.Sprintf("basic type %s", b.String()), Where: "convertBasic"}
	}
}

func integerWidth(k gotypes.BasicKind) int {
	switch k {
	case gotypes.Int8, gotypes.Uint8:
		return 8
	case gotypes.Int16, gotypes.Uint16:
		return 16
	case gotypes.Int32, gotypes.Uint32:
		return 32
	case gotypes.Int64, gotypes.Uint64:
		return 64
	default: // Int, Uint, Uintptr
		return pointerWidth
	}
}
