package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"fabricviz/internal/domain"
)

// DOTExporter writes a frame as an undirected Graphviz graph with every
// router pinned at its layout position.
type DOTExporter struct{}

// NewDOTExporter creates a new DOT exporter
func NewDOTExporter() *DOTExporter {
	return &DOTExporter{}
}

// Format returns the codec format identifier
func (e *DOTExporter) Format() string {
	return "dot"
}

// ContentType returns the MIME type of exported frames
func (e *DOTExporter) ContentType() string {
	return "text/vnd.graphviz"
}

// Export writes the frame as DOT
func (e *DOTExporter) Export(frame *domain.Frame, w io.Writer) error {
	if _, err := w.Write(ToDOT(frame)); err != nil {
		return fmt.Errorf("failed to write DOT: %w", err)
	}
	return nil
}

// ToDOT renders frame as DOT source. Y is flipped since Graphviz grows upward.
func ToDOT(frame *domain.Frame) []byte {
	var buf bytes.Buffer
	buf.WriteString("graph fabric {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fillcolor=white, fontsize=10, width=0.4, fixedsize=true];\n")
	buf.WriteString("  edge [color=\"#888888\"];\n")
	buf.WriteString("\n")

	for _, n := range frame.Nodes {
		fmt.Fprintf(&buf, "  %s [pos=\"%.2f,%.2f!\"];\n", dotID(n.ID), n.X, -n.Y)
	}

	buf.WriteString("\n")
	for _, l := range frame.Links {
		fmt.Fprintf(&buf, "  %s -- %s [id=%s];\n", dotID(l.SourceID), dotID(l.TargetID), dotID(l.ID))
	}

	buf.WriteString("}\n")
	return buf.Bytes()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// dotID quotes s as a DOT double-quoted string. Only the quote and the
// backslash are escaped; every other byte is legal inside DOT quotes.
func dotID(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
