package imagesource

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/qs3c/food_go_server/config"
)

var (
	ErrInvalidSource     = errors.New("图片来源无效：image_path、image_base64、image_url 三者必须且只能提供一个")
	ErrMissingFilename   = errors.New("base64 图片必须提供 filename")
	ErrSourceUnavailable = errors.New("图片来源不可用")
	ErrImageTooLarge     = errors.New("图片超过大小限制")
)

// Source 图片来源，三个字段有且只有一个非空
type Source struct {
	Path     string
	Base64   string
	Filename string
	URL      string
}

// Validate 校验来源互斥性。base64 必须带 filename。
func (s Source) Validate() error {
	count := 0
	if s.Path != "" {
		count++
	}
	if s.Base64 != "" {
		count++
	}
	if s.URL != "" {
		count++
	}
	if count != 1 {
		return ErrInvalidSource
	}
	if s.Base64 != "" && s.Filename == "" {
		return ErrMissingFilename
	}
	return nil
}

// Resolver 把图片来源归一化为本地文件路径
type Resolver struct {
	tempDir    string
	maxSize    int64
	httpClient *http.Client
}

func NewResolver(cfg *config.UploadConfig) *Resolver {
	return &Resolver{
		tempDir: cfg.TempDir,
		maxSize: cfg.MaxSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Resolve 返回本地文件路径和是否为临时文件。
// temporary 为 true 时，调用方必须在任何退出路径上删除该文件。
func (r *Resolver) Resolve(ctx context.Context, src Source) (path string, temporary bool, err error) {
	if err := src.Validate(); err != nil {
		return "", false, err
	}

	switch {
	case src.Path != "":
		if _, err := os.Stat(src.Path); err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("%w: 图片不存在: %s", ErrSourceUnavailable, src.Path)
			}
			return "", false, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
		}
		return src.Path, false, nil

	case src.Base64 != "":
		path, err := r.saveBase64(src.Base64, src.Filename)
		if err != nil {
			return "", false, err
		}
		return path, true, nil

	default:
		path, err := r.download(ctx, src.URL)
		if err != nil {
			return "", false, err
		}
		return path, true, nil
	}
}

// saveBase64 解码 base64 图片并写入临时文件
func (r *Resolver) saveBase64(data, filename string) (string, error) {
	// 去掉 data:image/...;base64, 前缀
	if idx := strings.Index(data, ","); idx >= 0 {
		data = data[idx+1:]
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", fmt.Errorf("%w: base64 解码失败: %v", ErrSourceUnavailable, err)
	}
	if r.maxSize > 0 && int64(len(decoded)) > r.maxSize {
		return "", fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(decoded))
	}

	path, err := r.tempPath(filepath.Ext(filename))
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, decoded, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp image: %w", err)
	}

	return path, nil
}

// download 下载远程图片到临时文件
func (r *Resolver) download(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: 下载失败: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: 下载失败 (status %d): %s", ErrSourceUnavailable, resp.StatusCode, rawURL)
	}

	ext := filepath.Ext(strings.SplitN(rawURL, "?", 2)[0])
	if ext == "" {
		ext = extFromContentType(resp.Header.Get("Content-Type"))
	}

	path, err := r.tempPath(ext)
	if err != nil {
		return "", err
	}

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create temp image: %w", err)
	}
	defer out.Close()

	limit := r.maxSize
	if limit <= 0 {
		limit = 16 * 1024 * 1024
	}
	written, err := io.Copy(out, io.LimitReader(resp.Body, limit+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("%w: 下载失败: %v", ErrSourceUnavailable, err)
	}
	if written > limit {
		os.Remove(path)
		return "", fmt.Errorf("%w: limit %d bytes", ErrImageTooLarge, limit)
	}

	return path, nil
}

func (r *Resolver) tempPath(ext string) (string, error) {
	if err := os.MkdirAll(r.tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate temp name: %w", err)
	}

	return filepath.Join(r.tempDir, hex.EncodeToString(buf)+strings.ToLower(ext)), nil
}

func extFromContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "image/jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "image/png"):
		return ".png"
	case strings.Contains(contentType, "image/gif"):
		return ".gif"
	case strings.Contains(contentType, "image/webp"):
		return ".webp"
	default:
		return ".jpg"
	}
}
