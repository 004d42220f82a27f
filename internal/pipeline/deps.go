package pipeline

import (
	"context"

	"storybook/internal/providers/openai"
)

// ImageGenerator produces one illustration and returns where the provider
// hosts it.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// ImageFetcher downloads a provider-hosted image.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// TextGenerator answers a single chat exchange.
type TextGenerator interface {
	GenerateText(ctx context.Context, req openai.TextRequest) (*openai.TextResult, error)
}
