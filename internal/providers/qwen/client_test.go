package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

const generationPath = "/api/v1/services/aigc/multimodal-generation/generation"

func imageResponse(url string) map[string]any {
	return map[string]any{
		"output": map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{
						"content": []any{
							map[string]any{"image": url},
						},
					},
				},
			},
		},
		"request_id": "req-123",
	}
}

func TestGenerateImagePayload(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	client := NewClient(Options{
		APIKey:     "test",
		HTTPClient: &http.Client{Transport: transport},
	})
	transport.setJSONResponse(generationPath, http.StatusOK, imageResponse("https://example.com/generated/out.png"))

	url, err := client.GenerateImage(context.Background(), "  a fox reading under a tree  ")
	if err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if url != "https://example.com/generated/out.png" {
		t.Fatalf("url = %q", url)
	}
	if transport.lastAuth != "Bearer test" {
		t.Fatalf("authorization = %q", transport.lastAuth)
	}

	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["model"] != "qwen-image-plus" {
		t.Fatalf("model = %v", payload["model"])
	}
	params := payload["parameters"].(map[string]any)
	if params["negative_prompt"] != defaultNegativePrompt {
		t.Fatalf("negative_prompt = %v", params["negative_prompt"])
	}
	if params["watermark"] != false {
		t.Fatalf("watermark = %v, want false", params["watermark"])
	}
	input := payload["input"].(map[string]any)
	content := input["messages"].([]any)[0].(map[string]any)["content"].([]any)
	if text := content[0].(map[string]any)["text"]; text != "a fox reading under a tree" {
		t.Fatalf("text = %v", text)
	}
}

func TestGenerateImageErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   string
	}{
		{name: "provider error body", status: http.StatusBadRequest, body: map[string]any{"code": "InvalidParameter", "message": "bad prompt"}, want: "bad prompt"},
		{name: "server error", status: http.StatusInternalServerError, body: map[string]any{}, want: "status 500"},
		{name: "code in 200", status: http.StatusOK, body: map[string]any{"code": "DataInspectionFailed", "message": "unsafe"}, want: "unsafe"},
		{name: "empty url", status: http.StatusOK, body: imageResponse(" "), want: "empty image url"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			transport := &captureTransport{responses: map[string]responseStub{}}
			transport.setJSONResponse(generationPath, tc.status, tc.body)
			client := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: transport}})
			_, err := client.GenerateImage(context.Background(), "scene")
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestGenerateImageKeySource(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse(generationPath, http.StatusOK, imageResponse("https://example.com/x.png"))
	client := NewClient(Options{
		KeySource:  func(ctx context.Context) (string, error) { return " stored ", nil },
		HTTPClient: &http.Client{Transport: transport},
	})
	if _, err := client.GenerateImage(context.Background(), "scene"); err != nil {
		t.Fatalf("generate image: %v", err)
	}
	if transport.lastAuth != "Bearer stored" {
		t.Fatalf("authorization = %q", transport.lastAuth)
	}
}

func TestGenerateImageMissingKey(t *testing.T) {
	client := NewClient(Options{KeySource: func(ctx context.Context) (string, error) { return "", nil }})
	if _, err := client.GenerateImage(context.Background(), "scene"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := NewClient(Options{}).GenerateImage(context.Background(), "scene"); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestGenerateImageRespectsDeadline(t *testing.T) {
	client := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: slowTransport{}}})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.GenerateImage(ctx, "scene")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

type slowTransport struct{}

func (slowTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, req.Context().Err()
}

type captureTransport struct {
	responses map[string]responseStub
	lastBody  []byte
	lastAuth  string
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method == http.MethodPost {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
		c.lastAuth = req.Header.Get("Authorization")
		if stub, ok := c.responses[req.URL.Path]; ok {
			return stub.toResponse(), nil
		}
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: status,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (s responseStub) toResponse() *http.Response {
	return &http.Response{
		StatusCode: s.status,
		Header:     s.header.Clone(),
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}
