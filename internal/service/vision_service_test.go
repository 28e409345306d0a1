package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/food_go_server/config"
	"github.com/qs3c/food_go_server/internal/model"
)

// stubChatClient 固定返回内容的模型客户端
type stubChatClient struct {
	chatResp   string
	chatErr    error
	visionResp string
	visionErr  error

	lastChatUser  string
	lastVisionURL string
}

func (s *stubChatClient) Chat(ctx context.Context, opts config.ModelConfig, system, user string) (string, error) {
	s.lastChatUser = user
	return s.chatResp, s.chatErr
}

func (s *stubChatClient) ChatVision(ctx context.Context, opts config.ModelConfig, prompt, imageURL string) (string, error) {
	s.lastVisionURL = imageURL
	return s.visionResp, s.visionErr
}

func visionTestConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{
			AllowedExtensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp"},
		},
	}
}

func writeTestImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0644))
	return path
}

func TestVisionService_Analyze(t *testing.T) {
	stub := &stubChatClient{
		visionResp: `{"dishes":[{"name":"红烧肉","name_en":"Braised pork","unit_type":"chunk","amount":4}],"confidence":0.92}`,
	}
	svc := NewVisionService(stub, visionTestConfig())

	result := svc.Analyze(context.Background(), writeTestImage(t, "dinner.jpg"))

	require.Empty(t, result.Error)
	require.Len(t, result.Dishes, 1)
	assert.Equal(t, "红烧肉", result.Dishes[0].Name)
	assert.Equal(t, "Braised pork", result.Dishes[0].NameEN)
	assert.Equal(t, model.UnitChunk, result.Dishes[0].UnitType)
	assert.Equal(t, 4.0, result.Dishes[0].Amount)
	assert.Equal(t, 0.92, result.Confidence)

	// 图片以 data URL 送给模型
	assert.True(t, strings.HasPrefix(stub.lastVisionURL, "data:image/jpeg;base64,"))
}

func TestVisionService_Analyze_CodeFencedResponse(t *testing.T) {
	stub := &stubChatClient{
		visionResp: "```json\n{\"dishes\":[],\"confidence\":0.5}\n```",
	}
	svc := NewVisionService(stub, visionTestConfig())

	result := svc.Analyze(context.Background(), writeTestImage(t, "empty.png"))

	require.Empty(t, result.Error)
	assert.NotNil(t, result.Dishes)
	assert.Empty(t, result.Dishes)
	assert.Equal(t, 0.5, result.Confidence)
}

func TestVisionService_Analyze_UnsupportedExtension(t *testing.T) {
	svc := NewVisionService(&stubChatClient{}, visionTestConfig())

	result := svc.Analyze(context.Background(), "/tmp/document.pdf")

	assert.Contains(t, result.Error, ".pdf")
	assert.Empty(t, result.Dishes)
}

func TestVisionService_Analyze_ModelError(t *testing.T) {
	stub := &stubChatClient{visionErr: errors.New("connection refused")}
	svc := NewVisionService(stub, visionTestConfig())

	result := svc.Analyze(context.Background(), writeTestImage(t, "lunch.jpg"))

	assert.Contains(t, result.Error, "connection refused")
}

func TestVisionService_Analyze_MalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		resp string
	}{
		{"not json", "I see some rice and vegetables"},
		{"confidence out of range", `{"dishes":[],"confidence":1.5}`},
		{"unknown unit type", `{"dishes":[{"name":"米饭","name_en":"Rice","unit_type":"bowl","amount":1}],"confidence":0.8}`},
		{"non-positive amount", `{"dishes":[{"name":"米饭","name_en":"Rice","unit_type":"cup","amount":0}],"confidence":0.8}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubChatClient{visionResp: tt.resp}
			svc := NewVisionService(stub, visionTestConfig())

			result := svc.Analyze(context.Background(), writeTestImage(t, "meal.jpg"))
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  \n```json\n{\"a\":1}\n```\n ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.in))
		})
	}
}
