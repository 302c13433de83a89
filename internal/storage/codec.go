package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Snapshot file header.
var MagicHeader = []byte("LOGBOOK1")

var ErrInvalidHeader = errors.New("invalid snapshot header")

// Codec frames a snapshot document for disk: magic header, then the
// zstd-compressed document, sealed with AES-GCM when a Sealer is set.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	sealer  *Sealer
}

// NewCodec creates a snapshot codec. A nil sealer disables at-rest
// encryption.
func NewCodec(sealer *Sealer) (*Codec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &Codec{encoder: enc, decoder: dec, sealer: sealer}, nil
}

// Encode produces the on-disk frame for a raw snapshot document.
func (c *Codec) Encode(doc []byte) ([]byte, error) {
	payload := c.encoder.EncodeAll(doc, make([]byte, 0, len(doc)))

	if c.sealer != nil {
		sealed, err := c.sealer.Seal(payload)
		if err != nil {
			return nil, fmt.Errorf("seal snapshot: %w", err)
		}
		payload = sealed
	}

	out := make([]byte, 0, len(MagicHeader)+len(payload))
	out = append(out, MagicHeader...)
	return append(out, payload...), nil
}

// Decode reverses Encode. A bad header, a failed unseal, or a
// truncated zstd frame all fail; the caller decides how to surface
// corruption.
func (c *Codec) Decode(data []byte) ([]byte, error) {
	if len(data) < len(MagicHeader) || !bytes.Equal(data[:len(MagicHeader)], MagicHeader) {
		return nil, ErrInvalidHeader
	}
	payload := data[len(MagicHeader):]

	if c.sealer != nil {
		opened, err := c.sealer.Open(payload)
		if err != nil {
			return nil, fmt.Errorf("unseal snapshot: %w", err)
		}
		payload = opened
	}

	doc, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	return doc, nil
}
