package pipeline

import (
	"sort"
	"strings"
)

// DefaultStyle is used when a style is unknown.
const DefaultStyle = "watercolor"

const illustrationFraming = "Children's book illustration, safe for children, no text, high quality."

var stylePhrases = map[string]string{
	"watercolor":        "soft watercolor painting, gentle washes of color, delicate paper texture",
	"crayon":            "hand-drawn crayon art, waxy strokes, bright playful colors",
	"pastel":            "soft pastel drawing, dreamy muted tones, chalky texture",
	"cartoon":           "clean cartoon style, bold outlines, flat cheerful colors",
	"3d":                "cute 3D render, soft lighting, rounded friendly shapes",
	"paper_cut":         "layered paper cut-out collage, subtle shadows between layers",
	"storybook_classic": "classic storybook illustration, fine ink lines with warm gouache",
}

// NormalizeStyle lower-cases and trims a style name.
func NormalizeStyle(style string) string {
	return strings.ToLower(strings.TrimSpace(style))
}

// StylePhrase returns the descriptor for style, falling back to DefaultStyle.
func StylePhrase(style string) string {
	if phrase, ok := stylePhrases[NormalizeStyle(style)]; ok {
		return phrase
	}
	return stylePhrases[DefaultStyle]
}

// Styles lists the supported style names in sorted order.
func Styles() []string {
	out := make([]string, 0, len(stylePhrases))
	for name := range stylePhrases {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// BuildIllustrationPrompt combines the fixed framing, the page's scene
// description and the style descriptor.
func BuildIllustrationPrompt(style, scene string) string {
	var b strings.Builder
	b.WriteString(illustrationFraming)
	b.WriteString(" Scene: ")
	b.WriteString(strings.TrimSpace(scene))
	if !strings.HasSuffix(b.String(), ".") {
		b.WriteString(".")
	}
	b.WriteString(" Style: ")
	b.WriteString(StylePhrase(style))
	b.WriteString(".")
	return b.String()
}
