package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storybook/internal/infra"
	"storybook/internal/sqlinline"
)

const (
	ProviderQwen   = "qwen"
	ProviderOpenAI = "openai"
)

// Store reads and writes provider API keys kept in integration_tokens.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

func (s *Store) QwenAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderQwen)
}

func (s *Store) OpenAIAPIKey(ctx context.Context) (string, error) {
	return s.Token(ctx, ProviderOpenAI)
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("select %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the configured key and falls back to the stored one.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	if s == nil || s.sql == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

func (s *Store) SetQwenAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, ProviderQwen, key)
}

func (s *Store) SetOpenAIAPIKey(ctx context.Context, key string) error {
	return s.Set(ctx, ProviderOpenAI, key)
}

func (s *Store) Set(ctx context.Context, provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New(provider + " api key is required")
	}
	switch provider {
	case ProviderQwen, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}
	raw, err := json.Marshal(map[string]any{"source": "storyctl"})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, key, raw)
	return err
}
