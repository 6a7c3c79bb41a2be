// Package render turns messages into HTML for export.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
	"github.com/AmitS1009/Constructure-AI/pkg/messages"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	markdownOnce     sync.Once
	markdownInstance goldmark.Markdown

	templatesOnce sync.Once
	templates     *template.Template
	templatesErr  error
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return markdownInstance
}

func parsedTemplates() (*template.Template, error) {
	templatesOnce.Do(func() {
		templates, templatesErr = template.New("").Funcs(template.FuncMap{
			"sourceLabel": SourceLabel,
			"timestamp": func(t time.Time) string {
				return t.UTC().Format("2006-01-02 15:04 MST")
			},
		}).ParseFS(templateFS, "templates/*.html")
	})
	return templates, templatesErr
}

// SourceLabel is the short citation shown for a source, e.g. "doors.pdf (p. 2)".
func SourceLabel(src core.Source) string {
	return fmt.Sprintf("%s (p. %d)", src.DocName, src.PageNum)
}

// renderedMessage is a message prepared for the templates.
type renderedMessage struct {
	messages.Message
	Body template.HTML
}

func prepare(msg messages.Message) (renderedMessage, error) {
	var buf bytes.Buffer
	if err := markdown().Convert([]byte(msg.Content), &buf); err != nil {
		return renderedMessage{}, fmt.Errorf("render message %s: %w", msg.ID, err)
	}
	// Raw HTML in the content is omitted by the renderer, so the output is safe to embed.
	return renderedMessage{Message: msg, Body: template.HTML(buf.String())}, nil
}

// Markdown renders one message as an HTML fragment: the content as markdown,
// followed by its sources with the excerpt as a tooltip.
func Markdown(msg messages.Message) (string, error) {
	tmpl, err := parsedTemplates()
	if err != nil {
		return "", err
	}
	rendered, err := prepare(msg)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "message", rendered); err != nil {
		return "", fmt.Errorf("render message %s: %w", msg.ID, err)
	}
	return buf.String(), nil
}

// Transcript renders a whole thread as a standalone HTML page.
func Transcript(title string, msgs []messages.Message) (string, error) {
	var buf bytes.Buffer
	if err := WriteTranscript(&buf, title, msgs); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteTranscript is Transcript writing to w.
func WriteTranscript(w io.Writer, title string, msgs []messages.Message) error {
	tmpl, err := parsedTemplates()
	if err != nil {
		return err
	}

	page := struct {
		Title    string
		Messages []renderedMessage
	}{Title: title}
	for _, msg := range msgs {
		rendered, err := prepare(msg)
		if err != nil {
			return err
		}
		page.Messages = append(page.Messages, rendered)
	}

	if err := tmpl.ExecuteTemplate(w, "transcript", page); err != nil {
		return fmt.Errorf("render transcript: %w", err)
	}
	return nil
}
