package util

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultQRSize = 256
	MinQRSize     = 64
	MaxQRSize     = 1024
)

var ErrQRSize = fmt.Errorf("qr size must be between %d and %d pixels", MinQRSize, MaxQRSize)

// QRCodePNG encodes content as a square PNG of size pixels with medium error
// correction. A zero size means DefaultQRSize.
func QRCodePNG(content string, size int) ([]byte, error) {
	if size == 0 {
		size = DefaultQRSize
	}
	if size < MinQRSize || size > MaxQRSize {
		return nil, ErrQRSize
	}
	if content == "" {
		return nil, errors.New("qr content is empty")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
