package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThumbnailKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want string
	}{
		{"png key", "user_1/1724900000-generated-ab12cd34.png", "user_1/1724900000-generated-ab12cd34.webp"},
		{"key without png suffix", "user_1/legacy-object", "user_1/legacy-object.webp"},
		{"short key", "a", "a.webp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, thumbnailKey(tt.key))
		})
	}
}
