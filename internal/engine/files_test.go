// internal/engine/files_test.go
package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMimeForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"shot.png", "image/png"},
		{"photo.JPG", "image/jpeg"},
		{"anim.gif", "image/gif"},
		{"pic.webp", "image/webp"},
		{"diagram.svg", "image/svg+xml"},
		{"report.pdf", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mimeForPath(tt.path), tt.path)
	}
}

func TestResolveLocalURL(t *testing.T) {
	assert.Equal(t, "https://example.com/x", resolveLocalURL("https://example.com/x"))
	assert.Equal(t, "http://localhost:8080", resolveLocalURL("http://localhost:8080"))
	assert.Equal(t, "file:///tmp/page.html", resolveLocalURL("file:///tmp/page.html"))

	got := resolveLocalURL("testdata/page.html")
	assert.True(t, strings.HasPrefix(got, "file://"), got)
	assert.True(t, strings.HasSuffix(got, "/testdata/page.html"), got)
}
