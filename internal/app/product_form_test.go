package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func TestEncodeImageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(path, append(pngHeader, bytes.Repeat([]byte{0}, 64)...), 0o644))

	encoded, err := EncodeImageFile(path)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "data:image/png;base64,"), "got %q", encoded[:32])
}

func TestEncodeImageFile_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.png")
	data := append(pngHeader, make([]byte, MaxImageBytes)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err := EncodeImageFile(path)

	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestEncodeImageFile_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("just some text"), 0o644))

	_, err := EncodeImageFile(path)

	assert.ErrorIs(t, err, ErrNotAnImage)
}

func TestProductFormValidate(t *testing.T) {
	tests := []struct {
		name    string
		form    ProductForm
		wantErr bool
	}{
		{"valid", ProductForm{Name: "Phone", Price: 499, Stock: 5}, false},
		{"valid with data url", ProductForm{Name: "Phone", Price: 499, Stock: 5, ImageURL: "data:image/png;base64,AAAA"}, false},
		{"valid with https url", ProductForm{Name: "Phone", Price: 1, Stock: 0, ImageURL: "https://example.com/p.png"}, false},
		{"missing name", ProductForm{Name: "  ", Price: 1, Stock: 1}, true},
		{"negative price", ProductForm{Name: "Phone", Price: -1, Stock: 1}, true},
		{"negative stock", ProductForm{Name: "Phone", Price: 1, Stock: -1}, true},
		{"bad image scheme", ProductForm{Name: "Phone", Price: 1, Stock: 1, ImageURL: "ftp://x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.form.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
