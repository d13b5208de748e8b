package rewrite

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// WriteSnapshot writes a zstd-compressed, human-readable diagnostic dump
// of the pool's roots, rule count, and equivalence-class count to w. This
// is a one-way export for attaching to a bug report or offline inspection
// — there is no corresponding load path, so derivation state never
// crosses sessions.
func (p *Pool) WriteSnapshot(w io.Writer) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("rewrite: opening snapshot writer: %w", err)
	}

	fmt.Fprintf(enc, "session: %s\n", p.SessionID)
	fmt.Fprintf(enc, "exprs: %d\n", p.NumExprs())
	fmt.Fprintf(enc, "rules: %d\n", p.NumRules())

	p.RWMu.RLock()
	numGroups := len(p.equivalenceGroups)
	p.RWMu.RUnlock()
	fmt.Fprintf(enc, "equivalence_groups: %d\n", numGroups)

	for _, root := range p.AllRoots() {
		fmt.Fprintf(enc, "root %s: %s\n", root, p.DisplayExpr(root))
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("rewrite: closing snapshot writer: %w", err)
	}
	return nil
}
