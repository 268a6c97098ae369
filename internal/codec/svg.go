package codec

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-graphviz"

	"fabricviz/internal/domain"
)

// SVGExporter renders a frame to SVG through Graphviz. The neato engine is
// used so pinned positions are honoured instead of re-laid out.
type SVGExporter struct{}

// NewSVGExporter creates a new SVG exporter
func NewSVGExporter() *SVGExporter {
	return &SVGExporter{}
}

// Format returns the codec format identifier
func (e *SVGExporter) Format() string {
	return "svg"
}

// ContentType returns the MIME type of exported frames
func (e *SVGExporter) ContentType() string {
	return "image/svg+xml"
}

// Export writes the frame as SVG
func (e *SVGExporter) Export(frame *domain.Frame, w io.Writer) error {
	svg, err := RenderSVG(context.Background(), ToDOT(frame))
	if err != nil {
		return err
	}
	if _, err := w.Write(svg); err != nil {
		return fmt.Errorf("failed to write SVG: %w", err)
	}
	return nil
}

// RenderSVG renders DOT source to SVG
func RenderSVG(ctx context.Context, dot []byte) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes(dot)
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
