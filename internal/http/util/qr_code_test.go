package util

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQRCodePNG(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{name: "default", size: 0, want: DefaultQRSize},
		{name: "small", size: MinQRSize, want: MinQRSize},
		{name: "large", size: 512, want: 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := QRCodePNG("https://go.example.com/s/abc123", tt.size)
			require.NoError(t, err)

			img, err := png.Decode(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, img.Bounds().Dx())
			assert.Equal(t, tt.want, img.Bounds().Dy())
		})
	}
}

func TestQRCodePNG_Errors(t *testing.T) {
	_, err := QRCodePNG("https://go.example.com/s/abc123", MinQRSize-1)
	assert.ErrorIs(t, err, ErrQRSize)

	_, err = QRCodePNG("https://go.example.com/s/abc123", MaxQRSize+1)
	assert.ErrorIs(t, err, ErrQRSize)

	_, err = QRCodePNG("", DefaultQRSize)
	assert.Error(t, err)
}
