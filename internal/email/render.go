package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"relnotify/internal/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Rendered holds both bodies plus the subject line for one recipient.
type Rendered struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer produces announcement emails from a release note. It is pure:
// given the same note and recipient it always yields identical output.
type Renderer struct {
	siteName string
	siteURL  string
	html     *htmltemplate.Template
	text     *texttemplate.Template
}

type templateData struct {
	SiteName       string
	SiteURL        string
	Note           *models.ReleaseNote
	Date           string
	UnsubscribeURL string
}

func changeIcon(changeType string) string {
	switch changeType {
	case "feature":
		return "🌟"
	case "improvement":
		return "⚡"
	case "fix":
		return "🐛"
	case "security":
		return "🔒"
	default:
		return "✅"
	}
}

func badgeStyle(releaseType models.ReleaseType) htmltemplate.CSS {
	switch releaseType {
	case models.ReleaseMajor:
		return "background-color: #fee2e2; color: #991b1b; border-color: #fecaca;"
	case models.ReleaseMinor:
		return "background-color: #dbeafe; color: #1e3a8a; border-color: #bfdbfe;"
	case models.ReleasePatch:
		return "background-color: #dcfce7; color: #166534; border-color: #bbf7d0;"
	default:
		return "background-color: #f3f4f6; color: #374151; border-color: #d1d5db;"
	}
}

func tagLabel(tag string) string {
	return strings.ReplaceAll(tag, "-", " ")
}

func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

func NewRenderer(siteName, siteURL string) (*Renderer, error) {

	html, err := htmltemplate.New("release_note.html.tmpl").
		Funcs(htmltemplate.FuncMap{
			"changeIcon": changeIcon,
			"badgeStyle": badgeStyle,
			"tagLabel":   tagLabel,
		}).
		ParseFS(templateFS, "templates/release_note.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("html template parse error: %w", err)
	}

	text, err := texttemplate.New("release_note.txt.tmpl").
		Funcs(texttemplate.FuncMap{
			"joinTags": joinTags,
		}).
		ParseFS(templateFS, "templates/release_note.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("text template parse error: %w", err)
	}

	return &Renderer{
		siteName: siteName,
		siteURL:  strings.TrimRight(siteURL, "/"),
		html:     html,
		text:     text,
	}, nil
}

// Render produces the personalized announcement for one recipient. The
// unsubscribe link carries the recipient address so one click removes the
// right subscription.
func (r *Renderer) Render(note *models.ReleaseNote, recipient string) (*Rendered, error) {

	data := templateData{
		SiteName:       r.siteName,
		SiteURL:        r.siteURL,
		Note:           note,
		Date:           note.CreatedAt.Format("January 2, 2006"),
		UnsubscribeURL: r.siteURL + "/unsubscribe?email=" + url.QueryEscape(recipient),
	}

	var html bytes.Buffer
	if err := r.html.Execute(&html, data); err != nil {
		return nil, fmt.Errorf("html template execution error: %w", err)
	}

	var text bytes.Buffer
	if err := r.text.Execute(&text, data); err != nil {
		return nil, fmt.Errorf("text template execution error: %w", err)
	}

	return &Rendered{
		Subject: fmt.Sprintf("🚀 %s v%s Released - %s", r.siteName, note.Version, note.Title),
		HTML:    html.String(),
		Text:    strings.TrimSpace(text.String()),
	}, nil
}
