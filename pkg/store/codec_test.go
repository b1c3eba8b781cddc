package store

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

func sampleBatch() options.Batch {
	return options.Batch{
		{"created": "2024-01-10 11:00:00", "strike": 470.0, "quote_date": "2024-01-10 11:00:00", "bid": 5.1, "ticker": "SPY"},
		{"created": "2024-01-10 11:00:00", "strike": 475.5, "quote_date": "2024-01-10 11:00:00", "bid": nil, "ticker": "SPY"},
	}
}

func keys(t *testing.T, b options.Batch) []string {
	t.Helper()
	out := make([]string, 0, len(b))
	for _, rec := range b {
		k, err := options.Key(rec)
		require.NoError(t, err)
		out = append(out, k)
	}
	return out
}

func TestCodecsPreserveRowKeys(t *testing.T) {
	for _, name := range []string{"json", "msgpack", "zlib+json", "zlib+msgpack"} {
		t.Run(name, func(t *testing.T) {
			codec, err := CodecByName(name)
			require.NoError(t, err)
			data, err := codec.Encode(sampleBatch())
			require.NoError(t, err)
			got, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, keys(t, sampleBatch()), keys(t, got))
			assert.Equal(t, "SPY", got[1]["ticker"])
		})
	}
}

func TestCompressedReadsExternallyZippedJSON(t *testing.T) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, 9)
	require.NoError(t, err)
	_, err = w.Write([]byte(`[{"created":"2024-01-10 11:00:00","strike":470,"index":3}]`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	got, err := Compressed(JSONCodec{}).Decode(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"2024-01-10 11:00:00_470"}, keys(t, got))
}

func TestCompressedReadsPlainPayloads(t *testing.T) {
	got, err := Compressed(JSONCodec{}).Decode([]byte(`[{"created":"c","strike":1}]`))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestCodecByNameRejectsUnknown(t *testing.T) {
	_, err := CodecByName("xml")
	assert.Error(t, err)
}
