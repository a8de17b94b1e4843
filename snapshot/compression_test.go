package snapshot

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompress(t *testing.T) {
	compressible := bytes.Repeat([]byte("row col value "), 512)

	random := make([]byte, 4096)
	r := rand.New(rand.NewPCG(1, 2))
	for k := range random {
		random[k] = byte(r.Uint32())
	}

	tests := []struct {
		name string
		data []byte
		c    Compression
		want Compression
	}{
		{"LZ4", compressible, CompressionLZ4, CompressionLZ4},
		{"ZSTD", compressible, CompressionZSTD, CompressionZSTD},
		{"None", compressible, CompressionNone, CompressionNone},
		{"LZ4Incompressible", random, CompressionLZ4, CompressionNone},
		{"ZSTDIncompressible", random, CompressionZSTD, CompressionNone},
		{"Empty", nil, CompressionZSTD, CompressionNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stored, used, err := compress(tt.data, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, used)
			if used != CompressionNone {
				assert.Less(t, len(stored), len(tt.data))
			}

			got, err := decompress(stored, used, len(tt.data))
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.data, got))
		})
	}
}

func TestDecompress_Corrupt(t *testing.T) {
	data := bytes.Repeat([]byte{7}, 1024)
	stored, used, err := compress(data, CompressionLZ4)
	require.NoError(t, err)
	require.Equal(t, CompressionLZ4, used)

	_, err = decompress(stored, used, len(data)+1)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = decompress(stored[:len(stored)/2], used, len(data))
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = decompress([]byte("not zstd"), CompressionZSTD, 8)
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = decompress(data, Compression(9), len(data))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZSTD} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)
}
