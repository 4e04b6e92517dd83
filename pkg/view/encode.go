package view

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/xplshn/cinterp/pkg/cli"
)

type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// Formats lists the accepted --format values.
var Formats = []string{string(FormatText), string(FormatJSON), string(FormatCBOR)}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("view: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// WriteTable encodes a token table.
func WriteTable(w io.Writer, rows []Row, f Format) error {
	switch f {
	case FormatText:
		return writeTableText(w, rows)
	case FormatJSON:
		return writeJSON(w, rows)
	case FormatCBOR:
		return writeCBOR(w, rows)
	}
	return fmt.Errorf("unknown format '%s'", f)
}

// WriteTree encodes a parse tree.
func WriteTree(w io.Writer, t *TreeNode, f Format) error {
	switch f {
	case FormatText:
		return writeTreeText(w, t)
	case FormatJSON:
		return writeJSON(w, t)
	case FormatCBOR:
		return writeCBOR(w, t)
	}
	return fmt.Errorf("unknown format '%s'", f)
}

func writeTableText(w io.Writer, rows []Row) error {
	kindWidth := len("Kind")
	for _, r := range rows {
		kindWidth = max(kindWidth, len(r.Kind))
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%4s  %-*s  %s\n", "ID", kindWidth, "Kind", "Text")
	for _, r := range rows {
		fmt.Fprintf(&sb, "%4d  %-*s  %s\n", r.ID, kindWidth, r.Kind, r.Text)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeTreeText(w io.Writer, t *TreeNode) error {
	var sb strings.Builder
	indent := cli.NewIndentState()
	t.Walk(func(n *TreeNode, depth int) {
		sb.WriteString(indent.AtLevel(depth))
		sb.WriteString(n.Label)
		sb.WriteByte('\n')
	})
	_, err := io.WriteString(w, sb.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCBOR(w io.Writer, v any) error {
	data, err := cborEncMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("view: marshal cbor: %w", err)
	}
	_, err = w.Write(data)
	return err
}
