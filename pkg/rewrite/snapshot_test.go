package rewrite

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestWriteSnapshot_ProducesValidZstdStream(t *testing.T) {
	p := NewPool()
	buildExpr(p, xcall(add(p), xvar("x"), xnum(1)))

	var buf bytes.Buffer
	require.NoError(t, p.WriteSnapshot(&buf))
	require.NotZero(t, buf.Len())

	dec, err := zstd.NewReader(&buf)
	require.NoError(t, err)
	defer dec.Close()

	out, err := io.ReadAll(dec)
	require.NoError(t, err)
	require.Contains(t, string(out), "root")
	require.Contains(t, string(out), "exprs: 3")
}
