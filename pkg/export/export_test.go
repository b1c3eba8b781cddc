package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodrigo-fonseca-oliveira/stock-analysis-engine/pkg/options"
)

func sampleBatch() options.Batch {
	return options.Batch{
		{"ticker": "SPY", "option_type": "call", "created": "2024-01-10 11:00:00", "strike": 470.0, "bid": 3.1, "volume": int64(12), "quote_date": "2024-01-09 16:00:00"},
		{"ticker": "SPY", "option_type": "call", "created": "2024-01-10 11:00:00", "strike": 475.5, "ask": 1.25},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" Parquet ")
	require.NoError(t, err)
	assert.Equal(t, FormatParquet, f)

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	assert.Equal(t, FormatJSON, FormatFromPath("/tmp/out.JSON", FormatCSV))
	assert.Equal(t, FormatCSV, FormatFromPath("/tmp/out", FormatCSV))
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []Format{FormatCSV, FormatJSON, FormatParquet} {
		t.Run(string(format), func(t *testing.T) {
			path := filepath.Join(dir, "nested", "SPY."+format.Extension())
			require.NoError(t, Write(path, sampleBatch(), format))

			got, err := Read(path, format)
			require.NoError(t, err)
			require.Len(t, got, 2)

			assert.Equal(t, 470.0, got[0]["strike"])
			assert.Equal(t, int64(12), got[0]["volume"])
			assert.Equal(t, "call", got[0]["option_type"])
			assert.Equal(t, "2024-01-09 16:00:00", got[0]["quote_date"])
			assert.NotContains(t, got[0], "ask")

			assert.Equal(t, 475.5, got[1]["strike"])
			assert.Equal(t, 1.25, got[1]["ask"])
			assert.NotContains(t, got[1], "volume")
		})
	}
}

func TestCSVHeaderFollowsCanonicalColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleBatch(), FormatCSV))
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, strings.Join(options.Fields, ","), strings.TrimSpace(header))
}

func TestDecodeJSONRecords(t *testing.T) {
	payload := `[{"created":"2024-01-10 11:00:00","strike":470,"bid_size":"7"}]`
	got, err := Decode(strings.NewReader(payload), FormatJSON)
	require.Error(t, err, "bid_size must be numeric in json exports")
	assert.Nil(t, got)

	payload = `[{"created":"2024-01-10 11:00:00","strike":470,"bid_size":7}]`
	got, err = Decode(strings.NewReader(payload), FormatJSON)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0]["bid_size"])
}

func TestDecodeParquetFromReaderUnsupported(t *testing.T) {
	_, err := Decode(strings.NewReader(""), FormatParquet)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteRejectsUndecodableRows(t *testing.T) {
	bad := options.Batch{{"strike": "not-a-number", "created": "x"}}
	err := Write(filepath.Join(t.TempDir(), "bad.csv"), bad, FormatCSV)
	require.Error(t, err)
}
