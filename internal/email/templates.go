package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// LayoutData fills the shared notification layout.
type LayoutData struct {
	Title          string
	Heading        string
	BodyLines      []string
	CTALabel       string
	CTAURL         string
	UnsubscribeURL string
}

// RenderLayout renders the standard notification email.
func RenderLayout(data LayoutData) (string, error) {
	tmpl, err := template.New("base.html").ParseFS(templateFS, "templates/base.html", "templates/notification.html")
	if err != nil {
		return "", fmt.Errorf("parse email templates: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template: %w", err)
	}
	return buf.String(), nil
}
