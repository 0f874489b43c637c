package region

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec сжимает буфер региона целиком перед кодированием в base64
type Codec interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// maxRegionBytes верхняя граница распакованного региона:
// таблица и все блоки полностью заполненного региона
const maxRegionBytes = LookupTableBytes + Chunks*chunkBytes

// NewCodec возвращает кодек по имени: zstd | gzip | none
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "zstd":
		return newZstdCodec()
	case "gzip":
		return gzipCodec{}, nil
	case "none":
		return noneCodec{}, nil
	default:
		return nil, fmt.Errorf("неизвестный алгоритм сжатия: %q", name)
	}
}

var (
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	gzipMagic = []byte{0x1F, 0x8B}
)

// DetectCodec определяет кодек сжатого буфера по сигнатуре. Несжатый буфер
// начинается со счётчика блоков (не больше Chunks), поэтому с сигнатурами не совпадает.
func DetectCodec(data []byte) string {
	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return "zstd"
	case bytes.HasPrefix(data, gzipMagic):
		return "gzip"
	default:
		return "none"
	}
}

var (
	codecsMu sync.Mutex
	codecs   = make(map[string]Codec)
)

// sharedCodec кодек для чтения блобов, записанных другим кодеком
func sharedCodec(name string) (Codec, error) {
	codecsMu.Lock()
	defer codecsMu.Unlock()

	if c, ok := codecs[name]; ok {
		return c, nil
	}
	c, err := NewCodec(name)
	if err != nil {
		return nil, err
	}
	codecs[name] = c
	return c, nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec() (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("ошибка создания zstd компрессора: %w", err)
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxRegionBytes))
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("ошибка создания zstd декомпрессора: %w", err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Name() string { return "zstd" }

func (c *zstdCodec) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

func (c *zstdCodec) Decompress(data []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки zstd: %w", err)
	}
	return out, nil
}

type gzipCodec struct{}

func (gzipCodec) Name() string { return "gzip" }

func (gzipCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("ошибка сжатия gzip: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("ошибка сжатия gzip: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки gzip: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, maxRegionBytes+1))
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки gzip: %w", err)
	}
	if len(out) > maxRegionBytes {
		return nil, fmt.Errorf("распакованный регион превышает %d байт", maxRegionBytes)
	}
	return out, nil
}

type noneCodec struct{}

func (noneCodec) Name() string                           { return "none" }
func (noneCodec) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCodec) Decompress(data []byte) ([]byte, error) { return data, nil }
