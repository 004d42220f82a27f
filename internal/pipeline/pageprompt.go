package pipeline

import (
	"context"
	"fmt"
	"strings"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/providers/openai"
)

const pagePromptSystem = `You describe one page of a children's picture book for an illustrator.
Reply with a single scene description in English, at most 60 words.
Name the characters, the setting, the action and the mood.
Never include dialogue, text, letters or anything unsuitable for young children.`

// PagePromptWriter fills a page's image prompt from its text.
type PagePromptWriter struct {
	boards domain.StoryboardRepository
	text   TextGenerator
	logger infra.Logger
}

func NewPagePromptWriter(boards domain.StoryboardRepository, text TextGenerator, logger infra.Logger) *PagePromptWriter {
	return &PagePromptWriter{boards: boards, text: text, logger: logger}
}

// WritePagePrompt returns the page unchanged when it already has a prompt,
// unless overwrite is set.
func (w *PagePromptWriter) WritePagePrompt(ctx context.Context, callerID, storyboardID string, pageNumber int, overwrite bool) (*domain.StoryboardPage, error) {
	if strings.TrimSpace(callerID) == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(storyboardID) == "" || pageNumber < 1 {
		return nil, fmt.Errorf("%w: storyboard id and page number are required", domain.ErrInvalidInput)
	}
	sb, err := w.boards.GetStoryboard(ctx, storyboardID)
	if err != nil {
		return nil, err
	}
	if sb.OwnerID != callerID {
		return nil, domain.ErrForbidden
	}
	page, err := w.boards.GetPage(ctx, storyboardID, pageNumber)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(page.ImagePrompt) != "" && !overwrite {
		return page, nil
	}
	text := strings.TrimSpace(page.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: page %d has no text", domain.ErrInvalidInput, pageNumber)
	}
	if w.text == nil {
		return nil, fmt.Errorf("%w: no text provider configured", domain.ErrGeneration)
	}

	res, err := w.text.GenerateText(ctx, openai.TextRequest{
		SystemPrompt: pagePromptSystem,
		UserPrompt:   fmt.Sprintf("Page %d text:\n%s", pageNumber, text),
		MaxTokens:    200,
		Temperature:  0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGeneration, err)
	}
	prompt := strings.TrimSpace(strings.Trim(strings.TrimSpace(res.Content), `"`))
	if prompt == "" {
		return nil, fmt.Errorf("%w: empty scene description", domain.ErrGeneration)
	}
	if err := w.boards.SetPageImagePrompt(ctx, page.ID, prompt); err != nil {
		return nil, err
	}
	w.logger.Info().
		Str("storyboard_id", storyboardID).
		Int("page", pageNumber).
		Str("model", res.Model).
		Msg("page image prompt written")

	page.ImagePrompt = prompt
	return page, nil
}
