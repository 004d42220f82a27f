package domain

// WorkStepPreview is written onto the parent work once every page is illustrated.
const WorkStepPreview = "preview"

// Storyboard is the ordered page set of one work. OwnerID is resolved through
// the parent work.
type Storyboard struct {
	ID      string
	WorkID  string
	OwnerID string
}

// StoryboardPage is one page's generation state. An empty ImageURL means the
// page has not been illustrated yet.
type StoryboardPage struct {
	ID           string
	StoryboardID string
	PageNumber   int
	Text         string
	ImagePrompt  string
	ImageURL     string
}

// HasImage reports whether the page already carries an illustration.
func (p *StoryboardPage) HasImage() bool {
	return p != nil && p.ImageURL != ""
}
