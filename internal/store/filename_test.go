package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wesm/ghsync/internal/models"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Hello World", 50, "hello-world"},
		{"  Fix: crash -- on   startup!! ", 50, "fix-crash-on-startup"},
		{"CamelCase123", 50, "camelcase123"},
		{"ünïcödé title", 50, "n-c-d-title"},
		{"abc def ghi", 4, "abc-"},
		{"!!!", 50, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in, tt.max), tt.in)
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "42-crash-on-startup.yaml",
		Filename(&models.SyncRecord{Title: "Crash on startup", Kind: models.KindIssue, IssueNumber: 42}))
	assert.Equal(t, "d7-better-docs.yaml",
		Filename(&models.SyncRecord{Title: "Better docs?", Kind: models.KindIdea, DiscussionNumber: 7}))
	assert.Equal(t, "draft.yaml",
		Filename(&models.SyncRecord{Title: "Draft", Kind: models.KindIssue}))
	assert.Equal(t, "5-untitled.yaml",
		Filename(&models.SyncRecord{Title: "???", Kind: models.KindIssue, IssueNumber: 5}))

	long := "a very long title that keeps going well past the fifty character limit"
	name := Filename(&models.SyncRecord{Title: long, Kind: models.KindIssue, IssueNumber: 1})
	assert.Equal(t, "1-"+Slugify(long, 50)+".yaml", name)
	assert.Len(t, Slugify(long, 50), 50)
}
