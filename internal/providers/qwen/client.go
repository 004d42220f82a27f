package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storybook/internal/infra"
)

// ErrMissingAPIKey indicates that neither a key nor a key source yielded credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

// defaultNegativePrompt keeps illustrations suitable for a picture book.
const defaultNegativePrompt = "text, letters, watermark, signature, violence, blood, scary, horror, nsfw, deformed hands"

// KeySource resolves the API key at call time, for keys kept in storage.
type KeySource func(ctx context.Context) (string, error)

// Options configures the DashScope Qwen client.
type Options struct {
	APIKey         string
	KeySource      KeySource
	BaseURL        string
	Model          string
	Size           string
	NegativePrompt string
	PromptExtend   bool
	HTTPClient     *http.Client
	Logger         *infra.Logger
}

// Client performs HTTP calls to the DashScope Qwen text-to-image API.
type Client struct {
	apiKey         string
	keySource      KeySource
	baseURL        string
	model          string
	size           string
	negativePrompt string
	promptExtend   bool
	httpClient     *http.Client
	logger         *infra.Logger
}

type generationRequest struct {
	Model      string           `json:"model"`
	Input      generationInput  `json:"input"`
	Parameters generationParams `json:"parameters"`
}

type generationInput struct {
	Messages []generationMessage `json:"messages"`
}

type generationMessage struct {
	Role    string              `json:"role"`
	Content []generationContent `json:"content"`
}

type generationContent struct {
	Text string `json:"text,omitempty"`
}

type generationParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	PromptExtend   bool   `json:"prompt_extend"`
	Watermark      bool   `json:"watermark"`
}

type generationResponse struct {
	Output struct {
		Choices []struct {
			Message struct {
				Content []struct {
					Image string `json:"image"`
				} `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// NewClient constructs a client with defaults for unset options. The
// caller bounds each call through its context.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "qwen-image-plus"
	}
	size := strings.TrimSpace(opts.Size)
	if size == "" {
		size = "1328*1328"
	}
	negative := strings.TrimSpace(opts.NegativePrompt)
	if negative == "" {
		negative = defaultNegativePrompt
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.Logger(zerolog.New(io.Discard))
		logger = &l
	}
	return &Client{
		apiKey:         strings.TrimSpace(opts.APIKey),
		keySource:      opts.KeySource,
		baseURL:        baseURL,
		model:          model,
		size:           size,
		negativePrompt: negative,
		promptExtend:   opts.PromptExtend,
		httpClient:     httpClient,
		logger:         logger,
	}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

func (c *Client) key(ctx context.Context) (string, error) {
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	if c.keySource == nil {
		return "", ErrMissingAPIKey
	}
	key, err := c.keySource(ctx)
	if err != nil {
		return "", fmt.Errorf("qwen: resolve api key: %w", err)
	}
	if key = strings.TrimSpace(key); key == "" {
		return "", ErrMissingAPIKey
	}
	return key, nil
}

// GenerateImage invokes the DashScope API once and returns the URL of the
// generated image as hosted by the provider.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("qwen: prompt is required")
	}
	apiKey, err := c.key(ctx)
	if err != nil {
		return "", err
	}
	payload := generationRequest{
		Model: c.model,
		Input: generationInput{
			Messages: []generationMessage{{
				Role:    "user",
				Content: []generationContent{{Text: prompt}},
			}},
		},
		Parameters: generationParams{
			NegativePrompt: c.negativePrompt,
			Size:           c.size,
			PromptExtend:   c.promptExtend,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("qwen: encode request: %w", err)
	}
	endpoint := c.baseURL + "/services/aigc/multimodal-generation/generation"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("qwen: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("qwen: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("qwen: read response: %w", err)
	}

	var decoded generationResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if resp.StatusCode >= 300 {
		if decodeErr == nil && decoded.Message != "" {
			return "", fmt.Errorf("qwen: status %d: %s (%s)", resp.StatusCode, decoded.Message, decoded.Code)
		}
		return "", fmt.Errorf("qwen: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("qwen: decode response: %w", decodeErr)
	}
	if decoded.Code != "" {
		return "", fmt.Errorf("qwen: %s (%s)", decoded.Message, decoded.Code)
	}
	imageURL := firstImageURL(decoded)
	if imageURL == "" {
		return "", errors.New("qwen: empty image url")
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("request_id", decoded.RequestID).
		Dur("latency", time.Since(start)).
		Msg("qwen: generated image")
	return imageURL, nil
}

func firstImageURL(resp generationResponse) string {
	for _, choice := range resp.Output.Choices {
		for _, content := range choice.Message.Content {
			if url := strings.TrimSpace(content.Image); url != "" {
				return url
			}
		}
	}
	return ""
}
