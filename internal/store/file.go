package store

import (
	"bytes"
	"fmt"

	"github.com/wesm/ghsync/internal/models"
	"gopkg.in/yaml.v3"
)

// recordFile is the on-disk shape of a record. Synced files use the nested
// metadata block; hand-written files may set the root-level fields instead.
type recordFile struct {
	Metadata     metadataFile     `yaml:"metadata"`
	BodyMarkdown string           `yaml:"body_markdown"`
	Comments     []models.Comment `yaml:"comments,omitempty"`

	Title     string   `yaml:"title,omitempty"`
	Body      string   `yaml:"body,omitempty"`
	Type      string   `yaml:"type,omitempty"`
	Labels    []string `yaml:"labels,flow,omitempty"`
	Assignees []string `yaml:"assignees,flow,omitempty"`
	Category  string   `yaml:"category,omitempty"`
}

type metadataFile struct {
	Title     string   `yaml:"title"`
	Type      string   `yaml:"type"`
	Labels    []string `yaml:"labels,flow"`
	Assignees []string `yaml:"assignees,flow"`
	State     string   `yaml:"state,omitempty"`
	Category  string   `yaml:"category,omitempty"`

	IssueNumber      int    `yaml:"github_issue_number,omitempty"`
	DiscussionID     string `yaml:"github_discussion_id,omitempty"`
	DiscussionNumber int    `yaml:"github_discussion_number,omitempty"`
	UpdatedAt        string `yaml:"github_updated_at,omitempty"`

	LastSynced *lastSyncedFile `yaml:"last_synced,omitempty"`
}

type lastSyncedFile struct {
	Title     string   `yaml:"title"`
	Body      string   `yaml:"body"`
	Labels    []string `yaml:"labels,flow"`
	UpdatedAt string   `yaml:"updated_at"`
	// nil when the snapshot predates assignee tracking
	Assignees *[]string `yaml:"assignees,flow,omitempty"`
}

// Decode parses one record file. Root-level title, body, type, labels,
// assignees and category win over their metadata counterparts when set.
func Decode(data []byte) (*models.SyncRecord, error) {
	var f recordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}

	m := f.Metadata
	rec := &models.SyncRecord{
		Title:            pick(f.Title, m.Title),
		Body:             pick(f.Body, f.BodyMarkdown),
		Labels:           pickSlice(f.Labels, m.Labels),
		Assignees:        pickSlice(f.Assignees, m.Assignees),
		State:            m.State,
		Category:         pick(f.Category, m.Category),
		Kind:             models.ParseItemKind(pick(f.Type, m.Type)),
		IssueNumber:      m.IssueNumber,
		DiscussionID:     m.DiscussionID,
		DiscussionNumber: m.DiscussionNumber,
		UpdatedAt:        m.UpdatedAt,
		Comments:         f.Comments,
	}
	if rec.Title == "" {
		return nil, fmt.Errorf("record has no title")
	}
	if m.LastSynced != nil {
		rec.LastSynced = &models.LastSynced{
			Title:     m.LastSynced.Title,
			Body:      m.LastSynced.Body,
			Labels:    m.LastSynced.Labels,
			UpdatedAt: m.LastSynced.UpdatedAt,
		}
		if m.LastSynced.Assignees != nil {
			rec.LastSynced.Assignees = nonNil(*m.LastSynced.Assignees)
		}
	}
	return rec, nil
}

// Encode renders a record in the nested shape. Root-level overrides are not
// written, so a hand-written file is normalized on its first write.
func Encode(rec *models.SyncRecord) ([]byte, error) {
	f := recordFile{
		Metadata: metadataFile{
			Title:     rec.Title,
			Type:      string(rec.Kind),
			Labels:    nonNil(rec.Labels),
			Assignees: nonNil(rec.Assignees),
			Category:  rec.Category,
			UpdatedAt: rec.UpdatedAt,
		},
		BodyMarkdown: rec.Body,
		Comments:     rec.Comments,
	}
	if rec.Kind == models.KindIdea {
		f.Metadata.DiscussionID = rec.DiscussionID
		f.Metadata.DiscussionNumber = rec.DiscussionNumber
	} else {
		f.Metadata.State = rec.State
		f.Metadata.IssueNumber = rec.IssueNumber
	}
	if ls := rec.LastSynced; ls != nil {
		f.Metadata.LastSynced = &lastSyncedFile{
			Title:     ls.Title,
			Body:      ls.Body,
			Labels:    nonNil(ls.Labels),
			UpdatedAt: ls.UpdatedAt,
		}
		if ls.Assignees != nil {
			assignees := ls.Assignees
			f.Metadata.LastSynced.Assignees = &assignees
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return buf.Bytes(), nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func pickSlice(override, fallback []string) []string {
	if len(override) > 0 {
		return override
	}
	return fallback
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
