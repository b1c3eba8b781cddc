package store

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

// Codec turns a batch into bytes and back.
type Codec interface {
	Name() string
	Encode(options.Batch) ([]byte, error)
	Decode([]byte) (options.Batch, error)
}

// JSONCodec stores a batch as a JSON array of records.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(b options.Batch) ([]byte, error) {
	if b == nil {
		b = options.Batch{}
	}
	return json.Marshal(b)
}

func (JSONCodec) Decode(data []byte) (options.Batch, error) {
	var b options.Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return b, nil
}

// MsgpackCodec stores a batch as a msgpack array of maps.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(b options.Batch) ([]byte, error) {
	return msgpack.Marshal([]options.Record(b))
}

func (MsgpackCodec) Decode(data []byte) (options.Batch, error) {
	var rows []map[string]any
	if err := msgpack.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	b := make(options.Batch, 0, len(rows))
	for _, row := range rows {
		b = append(b, options.Record(row))
	}
	return b, nil
}

type compressed struct {
	inner Codec
}

// Compressed wraps a codec with zlib at best compression. Decode also
// accepts uncompressed payloads so older keys stay readable.
func Compressed(inner Codec) Codec {
	return compressed{inner: inner}
}

func (c compressed) Name() string { return "zlib+" + c.inner.Name() }

func (c compressed) Encode(b options.Batch) ([]byte, error) {
	raw, err := c.inner.Encode(b)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c compressed) Decode(data []byte) (options.Batch, error) {
	if !isZlib(data) {
		return c.inner.Decode(data)
	}
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return c.inner.Decode(raw)
}

// isZlib checks the two byte zlib header: deflate method, window size and a
// valid FCHECK.
func isZlib(data []byte) bool {
	if len(data) < 2 || data[0]&0x0f != 8 || data[0]>>4 > 7 {
		return false
	}
	return (uint16(data[0])<<8|uint16(data[1]))%31 == 0
}

// CodecByName resolves "json", "msgpack", "zlib+json" or "zlib+msgpack".
func CodecByName(name string) (Codec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	zipped := false
	if rest, ok := strings.CutPrefix(name, "zlib+"); ok {
		zipped, name = true, rest
	}
	var c Codec
	switch name {
	case "", "json":
		c = JSONCodec{}
	case "msgpack":
		c = MsgpackCodec{}
	default:
		return nil, fmt.Errorf("store: unknown codec %q", name)
	}
	if zipped {
		c = Compressed(c)
	}
	return c, nil
}
