package inventory

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// Encoding formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatCBOR = "cbor"
)

// Snapshot is the inventory of one store on one host.
type Snapshot struct {
	Host     string    `json:"host" yaml:"host" cbor:"host"`
	Store    string    `json:"store" yaml:"store" cbor:"store"`
	TakenAt  time.Time `json:"taken_at" yaml:"taken_at" cbor:"taken_at"`
	Bindings bool      `json:"bindings" yaml:"bindings" cbor:"bindings"`
	Items    []Item    `json:"items" yaml:"items" cbor:"items"`
}

// Encode writes s to w in format.
func (s *Snapshot) Encode(w io.Writer, format string) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case FormatCBOR:
		data, err := cborMode.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode cbor: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported format %q (use json, yaml or cbor)", format)
	}
}

// DecodeSnapshot reads a snapshot written by Encode.
func DecodeSnapshot(data []byte, format string) (*Snapshot, error) {
	var s Snapshot
	var err error
	switch format {
	case FormatJSON, "":
		err = json.Unmarshal(data, &s)
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	case FormatCBOR:
		err = cbor.Unmarshal(data, &s)
	default:
		return nil, fmt.Errorf("unsupported format %q (use json, yaml or cbor)", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s snapshot: %w", format, err)
	}
	return &s, nil
}

// cborMode encodes deterministically with RFC 3339 times.
var cborMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()
