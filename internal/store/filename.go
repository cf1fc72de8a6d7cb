package store

import (
	"fmt"
	"strings"

	"github.com/wesm/ghsync/internal/models"
)

// MaxSlugLength bounds the title part of generated filenames.
const MaxSlugLength = 50

// Slugify lowercases s, collapses every run of characters outside [a-z0-9]
// into one hyphen and truncates the result to maxLen characters. Truncation
// may leave a trailing hyphen.
func Slugify(s string, maxLen int) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > maxLen {
		slug = slug[:maxLen]
	}
	return slug
}

// Filename returns the generated filename for rec: {number}-{slug}.yaml for
// issues and d{number}-{slug}.yaml for ideas. Records without a number get
// {slug}.yaml.
func Filename(rec *models.SyncRecord) string {
	slug := Slugify(rec.Title, MaxSlugLength)
	if slug == "" {
		slug = "untitled"
	}

	switch {
	case rec.Kind == models.KindIdea && rec.DiscussionNumber > 0:
		return fmt.Sprintf("d%d-%s.yaml", rec.DiscussionNumber, slug)
	case rec.Kind != models.KindIdea && rec.IssueNumber > 0:
		return fmt.Sprintf("%d-%s.yaml", rec.IssueNumber, slug)
	default:
		return slug + ".yaml"
	}
}
