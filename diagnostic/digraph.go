package diagnostic

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// DumpDigraph writes a digraph-format rendering (as produced by
// pointsto.PTG.ToDigraph or pointsto.Store.ToDigraph) to w, zstd-compressed,
// for the debug/test persistence format named in §6 Persisted state.
func DumpDigraph(w io.Writer, digraph string) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if _, err := enc.Write([]byte(digraph)); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// LoadDigraph reverses DumpDigraph, decompressing r back into the original
// digraph-format text.
func LoadDigraph(r io.Reader) (string, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return "", err
	}
	defer dec.Close()
	b, err := io.ReadAll(dec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
