package keyindex

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Segments are compressed on the wire before they reach the storage
// adapter: catalogs with long histories accumulate many small,
// mostly-text segments, and zstd's dictionary-free mode already pays for
// itself at this size. The encoder/decoder pair is shared process-wide
// (zstd's own types are goroutine-safe for concurrent EncodeAll/DecodeAll
// calls) rather than allocated per segment.
var (
	wireEncoderOnce sync.Once
	wireEncoder     *zstd.Encoder
	wireDecoderOnce sync.Once
	wireDecoder     *zstd.Decoder
)

func getWireEncoder() *zstd.Encoder {
	wireEncoderOnce.Do(func() {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(fmt.Sprintf("keyindex: building zstd encoder: %v", err))
		}
		wireEncoder = enc
	})
	return wireEncoder
}

func getWireDecoder() *zstd.Decoder {
	wireDecoderOnce.Do(func() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(fmt.Sprintf("keyindex: building zstd decoder: %v", err))
		}
		wireDecoder = dec
	})
	return wireDecoder
}

func compressWire(b []byte) []byte {
	return getWireEncoder().EncodeAll(b, make([]byte, 0, len(b)))
}

func decompressWire(b []byte) ([]byte, error) {
	return getWireDecoder().DecodeAll(b, nil)
}
