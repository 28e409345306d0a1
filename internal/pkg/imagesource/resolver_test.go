package imagesource

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/food_go_server/config"
)

func newTestResolver(t *testing.T, maxSize int64) *Resolver {
	t.Helper()
	return NewResolver(&config.UploadConfig{
		TempDir: t.TempDir(),
		MaxSize: maxSize,
	})
}

func TestSource_Validate(t *testing.T) {
	tests := []struct {
		name    string
		src     Source
		wantErr error
	}{
		{
			name:    "no source",
			src:     Source{},
			wantErr: ErrInvalidSource,
		},
		{
			name:    "path only",
			src:     Source{Path: "/tmp/a.jpg"},
			wantErr: nil,
		},
		{
			name:    "base64 with filename",
			src:     Source{Base64: "Zm9v", Filename: "a.jpg"},
			wantErr: nil,
		},
		{
			name:    "base64 without filename",
			src:     Source{Base64: "Zm9v"},
			wantErr: ErrMissingFilename,
		},
		{
			name:    "url only",
			src:     Source{URL: "https://example.com/a.jpg"},
			wantErr: nil,
		},
		{
			name:    "path and base64",
			src:     Source{Path: "/tmp/a.jpg", Base64: "Zm9v", Filename: "a.jpg"},
			wantErr: ErrInvalidSource,
		},
		{
			name:    "path and url",
			src:     Source{Path: "/tmp/a.jpg", URL: "https://example.com/a.jpg"},
			wantErr: ErrInvalidSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestResolver_Resolve_Path(t *testing.T) {
	r := newTestResolver(t, 0)

	imagePath := filepath.Join(t.TempDir(), "food.jpg")
	require.NoError(t, os.WriteFile(imagePath, []byte("jpeg-bytes"), 0644))

	path, temporary, err := r.Resolve(context.Background(), Source{Path: imagePath})
	require.NoError(t, err)
	assert.Equal(t, imagePath, path)
	assert.False(t, temporary)
}

func TestResolver_Resolve_PathMissing(t *testing.T) {
	r := newTestResolver(t, 0)

	missing := filepath.Join(t.TempDir(), "nope.jpg")
	_, _, err := r.Resolve(context.Background(), Source{Path: missing})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	// 错误信息要指明具体路径
	assert.Contains(t, err.Error(), missing)
}

func TestResolver_Resolve_Base64(t *testing.T) {
	r := newTestResolver(t, 0)

	content := []byte("fake png data")
	encoded := base64.StdEncoding.EncodeToString(content)

	path, temporary, err := r.Resolve(context.Background(), Source{
		Base64:   encoded,
		Filename: "snack.png",
	})
	require.NoError(t, err)
	assert.True(t, temporary)
	assert.Equal(t, ".png", filepath.Ext(path))

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, saved)
}

func TestResolver_Resolve_Base64DataURLPrefix(t *testing.T) {
	r := newTestResolver(t, 0)

	content := []byte("fake jpeg data")
	encoded := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(content)

	path, temporary, err := r.Resolve(context.Background(), Source{
		Base64:   encoded,
		Filename: "meal.jpg",
	})
	require.NoError(t, err)
	assert.True(t, temporary)

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, saved)
}

func TestResolver_Resolve_Base64Invalid(t *testing.T) {
	r := newTestResolver(t, 0)

	_, _, err := r.Resolve(context.Background(), Source{
		Base64:   "not-base64!!!",
		Filename: "x.jpg",
	})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestResolver_Resolve_Base64TooLarge(t *testing.T) {
	r := newTestResolver(t, 8)

	encoded := base64.StdEncoding.EncodeToString([]byte("definitely more than eight bytes"))
	_, _, err := r.Resolve(context.Background(), Source{
		Base64:   encoded,
		Filename: "big.jpg",
	})
	assert.ErrorIs(t, err, ErrImageTooLarge)
}

func TestResolver_Resolve_URL(t *testing.T) {
	content := []byte("remote image bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(content)
	}))
	defer server.Close()

	r := newTestResolver(t, 0)

	path, temporary, err := r.Resolve(context.Background(), Source{URL: server.URL + "/photo"})
	require.NoError(t, err)
	assert.True(t, temporary)
	// URL 没有扩展名时按 Content-Type 推断
	assert.Equal(t, ".png", filepath.Ext(path))

	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, saved)
}

func TestResolver_Resolve_URLNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	r := newTestResolver(t, 0)

	_, _, err := r.Resolve(context.Background(), Source{URL: server.URL + "/gone.jpg"})
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestResolver_Resolve_URLTooLarge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	r := newTestResolver(t, 50)

	_, _, err := r.Resolve(context.Background(), Source{URL: server.URL + "/huge.jpg"})
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
