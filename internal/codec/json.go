package codec

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"fabricviz/internal/domain"
)

// JSONCodec handles JSON snapshots and frame export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// ContentType returns the MIME type of exported frames
func (c *JSONCodec) ContentType() string {
	return "application/json"
}

// DecodeSnapshot parses a single JSON snapshot message
func DecodeSnapshot(data []byte) (domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return snap, nil
}

// Decode reads a single snapshot object, an array of snapshots, or a stream
// of concatenated/newline-delimited snapshot objects.
func (c *JSONCodec) Decode(r io.Reader) ([]domain.Snapshot, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read JSON: %w", err)
	}

	decoder := json.NewDecoder(br)
	if first == '[' {
		var snaps []domain.Snapshot
		if err := decoder.Decode(&snaps); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return snaps, nil
	}

	var snaps []domain.Snapshot
	for {
		var snap domain.Snapshot
		if err := decoder.Decode(&snap); err != nil {
			if errors.Is(err, io.EOF) {
				return snaps, nil
			}
			return nil, fmt.Errorf("failed to parse JSON snapshot %d: %w", len(snaps)+1, err)
		}
		snaps = append(snaps, snap)
	}
}

// Export writes the frame as indented JSON
func (c *JSONCodec) Export(frame *domain.Frame, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(frame); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		if !bytes.ContainsAny(b, " \t\r\n") {
			return b[0], nil
		}
		if _, err := br.ReadByte(); err != nil {
			return 0, err
		}
	}
}
