// Package codec decodes fabric snapshots and encodes rendered frames.
//
// Snapshot decoders accept a stream: a replay file may hold one snapshot or a
// sequence of them, applied in order. Frame exporters write the positions of
// a published frame as JSON, Graphviz DOT or SVG.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"fabricviz/internal/domain"
)

// Decoder reads snapshots from a stream
type Decoder interface {
	Decode(r io.Reader) ([]domain.Snapshot, error)
	Format() string
}

// Exporter writes a frame in some format
type Exporter interface {
	Export(frame *domain.Frame, w io.Writer) error
	Format() string
	ContentType() string
}

// DecoderFor returns the decoder for a format name
func DecoderFor(format string) (Decoder, error) {
	switch strings.ToLower(format) {
	case "json", "ndjson":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	default:
		return nil, fmt.Errorf("unsupported snapshot format: %s", format)
	}
}

// DecoderForPath picks a decoder from a file extension, defaulting to JSON
func DecoderForPath(path string) Decoder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYAMLCodec()
	default:
		return NewJSONCodec()
	}
}

// ExporterFor returns the exporter for a format name
func ExporterFor(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONCodec(), nil
	case "dot", "gv":
		return NewDOTExporter(), nil
	case "svg":
		return NewSVGExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}
