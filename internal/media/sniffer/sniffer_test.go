package sniffer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	avif := append([]byte{0, 0, 0, 0x1c}, []byte("ftypavif\x00\x00\x00\x00avifmif1")...)

	cases := []struct {
		name string
		data []byte
		want MediaType
		mime string
	}{
		{"jpeg", []byte{0xff, 0xd8, 0xff, 0xe0, 0x00}, TypeJPEG, "image/jpeg"},
		{"png", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0}, TypePNG, "image/png"},
		{"gif", []byte("GIF89a\x01\x00"), TypeGIF, "image/gif"},
		{"webp", []byte("RIFF\x24\x00\x00\x00WEBPVP8 "), TypeWEBP, "image/webp"},
		{"avif", avif, TypeAVIF, "image/avif"},
		{"svg", []byte(`  <svg xmlns="http://www.w3.org/2000/svg"></svg>`), TypeSVG, "image/svg+xml"},
		{"svg with prolog", []byte(`<?xml version="1.0"?><svg></svg>`), TypeSVG, "image/svg+xml"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Detect(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Type)
			assert.Equal(t, tc.mime, got.MIME)
		})
	}
}

func TestDetectRejects(t *testing.T) {
	for _, data := range [][]byte{
		nil,
		[]byte("<html><body>not an image</body></html>"),
		[]byte(`<?xml version="1.0"?><feed></feed>`),
		[]byte("plain text"),
	} {
		_, err := Detect(data)
		assert.ErrorIs(t, err, ErrUnknownType, "%q", data)
	}
}

func TestDetectOnlyInspectsHead(t *testing.T) {
	data := append(bytes.Repeat([]byte(" "), headSize), []byte("<svg></svg>")...)
	_, err := Detect(data)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestBaseMIME(t *testing.T) {
	assert.Equal(t, "image/png", BaseMIME("image/PNG; charset=binary"))
	assert.Equal(t, "", BaseMIME(""))
}
