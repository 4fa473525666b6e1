package email

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"relnotify/internal/models"
)

func fixtureNote() *models.ReleaseNote {
	return &models.ReleaseNote{
		ID:          1,
		Version:     "3.1.0",
		Title:       "Autumn release",
		Description: "Search got a lot faster.",
		Type:        models.ReleaseMinor,
		Tags:        []string{"performance", "api-changes"},
		Changes: []models.Change{
			{Type: "feature", Text: "Saved searches"},
			{Type: "fix", Text: "Fixed pagination off-by-one"},
			{Type: "security", Text: "Session tokens rotate on login"},
		},
		CreatedAt: time.Date(2025, 10, 2, 8, 30, 0, 0, time.UTC),
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	r, err := NewRenderer("Acme", "https://acme.example.com")
	require.NoError(t, err)

	note := fixtureNote()
	first, err := r.Render(note, "user@example.com")
	require.NoError(t, err)
	second, err := r.Render(note, "user@example.com")
	require.NoError(t, err)

	assert.Equal(t, first.HTML, second.HTML)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Subject, second.Subject)
}

func TestRenderSubject(t *testing.T) {
	r, err := NewRenderer("Acme", "https://acme.example.com")
	require.NoError(t, err)

	out, err := r.Render(fixtureNote(), "user@example.com")
	require.NoError(t, err)

	assert.Equal(t, "🚀 Acme v3.1.0 Released - Autumn release", out.Subject)
}

func TestRenderPersonalizesUnsubscribeLink(t *testing.T) {
	r, err := NewRenderer("Acme", "https://acme.example.com/")
	require.NoError(t, err)

	out, err := r.Render(fixtureNote(), "jane+news@example.com")
	require.NoError(t, err)

	link := "https://acme.example.com/unsubscribe?email=jane%2Bnews%40example.com"
	assert.Contains(t, out.HTML, link)
	assert.Contains(t, out.Text, link)
}

func TestRenderBodies(t *testing.T) {
	r, err := NewRenderer("Acme", "https://acme.example.com")
	require.NoError(t, err)

	out, err := r.Render(fixtureNote(), "user@example.com")
	require.NoError(t, err)

	assert.Contains(t, out.HTML, "v3.1.0")
	assert.Contains(t, out.HTML, "Autumn release")
	assert.Contains(t, out.HTML, "October 2, 2025")
	assert.Contains(t, out.HTML, "Saved searches")
	// tag hyphens become spaces in the HTML body
	assert.Contains(t, out.HTML, "api changes")

	assert.Contains(t, out.Text, "Acme Release Notes - v3.1.0")
	assert.Contains(t, out.Text, "* Fixed pagination off-by-one")
	assert.Contains(t, out.Text, "Tags: performance, api-changes")
}

func TestRenderEscapesHTML(t *testing.T) {
	r, err := NewRenderer("Acme", "https://acme.example.com")
	require.NoError(t, err)

	note := fixtureNote()
	note.Title = `<script>alert("x")</script>`

	out, err := r.Render(note, "user@example.com")
	require.NoError(t, err)

	assert.NotContains(t, out.HTML, "<script>")
}

func TestRenderOmitsEmptyTags(t *testing.T) {
	r, err := NewRenderer("Acme", "https://acme.example.com")
	require.NoError(t, err)

	note := fixtureNote()
	note.Tags = nil

	out, err := r.Render(note, "user@example.com")
	require.NoError(t, err)

	assert.NotContains(t, out.HTML, `class="tag"`)
	assert.NotContains(t, out.Text, "Tags:")
}
