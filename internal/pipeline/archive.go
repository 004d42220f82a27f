package pipeline

import (
	"context"
	"fmt"
	"path"
	"sort"

	"storybook/internal/domain"
	"storybook/internal/infra"
	"storybook/internal/storage"
	"storybook/pkg/zip"
)

// Archive is a zip of a completed task's illustrations in page order.
type Archive struct {
	Filename string
	Data     []byte
}

// Archiver bundles the pages of a completed task.
type Archiver struct {
	tasks   domain.TaskRepository
	blobs   storage.BlobStore
	fetcher ImageFetcher
	logger  infra.Logger
}

func NewArchiver(tasks domain.TaskRepository, blobs storage.BlobStore, fetcher ImageFetcher, logger infra.Logger) *Archiver {
	return &Archiver{tasks: tasks, blobs: blobs, fetcher: fetcher, logger: logger}
}

func (a *Archiver) Archive(ctx context.Context, callerID, taskID string) (*Archive, error) {
	task, err := loadOwnedTask(ctx, a.tasks, callerID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != domain.TaskStatusCompleted {
		return nil, domain.ErrTaskNotCompleted
	}

	pages := latestPages(task.Result.Pages)
	assets := make([]zip.Asset, 0, len(pages))
	for _, p := range pages {
		data, contentType, err := a.load(ctx, p.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("archive page %d: %w", p.PageNumber, err)
		}
		ext := path.Ext(p.ImageURL)
		if ext == "" || len(ext) > 5 {
			ext = extensionFor(contentType)
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("page-%02d%s", p.PageNumber, ext),
			MIME:     contentType,
			Data:     data,
		})
	}
	data, err := zip.ArchiveAssets(assets, task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.logger.Debug().Str("task_id", task.ID).Int("pages", len(assets)).Msg("archive built")
	return &Archive{Filename: fmt.Sprintf("storyboard-%s.zip", task.Result.StoryboardID), Data: data}, nil
}

func (a *Archiver) load(ctx context.Context, url string) ([]byte, string, error) {
	if a.blobs != nil && a.blobs.Owns(url) {
		data, err := a.blobs.Read(ctx, url)
		if err != nil {
			return nil, "", err
		}
		return data, contentTypeFor(path.Ext(url)), nil
	}
	if a.fetcher == nil {
		return nil, "", storage.ErrForeignURL
	}
	return a.fetcher.Fetch(ctx, url)
}

// latestPages keeps the last recorded URL per page, ordered by page number.
func latestPages(entries []domain.PageImage) []domain.PageImage {
	byPage := make(map[int]string, len(entries))
	for _, e := range entries {
		if e.ImageURL != "" {
			byPage[e.PageNumber] = e.ImageURL
		}
	}
	out := make([]domain.PageImage, 0, len(byPage))
	for n, url := range byPage {
		out = append(out, domain.PageImage{PageNumber: n, ImageURL: url})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageNumber < out[j].PageNumber })
	return out
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}
