package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"text/template"

	"github.com/hamed0406/alertack/internal/domain"
)

//go:embed templates/*
var templateFS embed.FS

// Templates holds the parsed alert email bodies.
type Templates struct {
	html  *htmltemplate.Template
	plain *template.Template
}

// TemplateData is what the alert templates see.
type TemplateData struct {
	Status      string
	StatusColor string
	ServiceName string
	HostName    string
	Information string
}

const noInformation = "No information available"

func LoadTemplates() (*Templates, error) {
	html, err := htmltemplate.New("alert.html").Funcs(htmltemplate.FuncMap{
		"nl2br": nl2br,
	}).ParseFS(templateFS, "templates/alert.html")
	if err != nil {
		return nil, fmt.Errorf("parse alert.html: %w", err)
	}
	plain, err := template.New("alert.txt").ParseFS(templateFS, "templates/alert.txt")
	if err != nil {
		return nil, fmt.Errorf("parse alert.txt: %w", err)
	}
	return &Templates{html: html, plain: plain}, nil
}

// nl2br escapes s and turns newlines into <br>.
func nl2br(s string) htmltemplate.HTML {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return htmltemplate.HTML(strings.ReplaceAll(htmltemplate.HTMLEscapeString(s), "\n", "<br>"))
}

func statusColor(s domain.Status) string {
	switch s {
	case domain.StatusCritical, domain.StatusDown:
		return "#d32f2f"
	case domain.StatusWarning:
		return "#f57c00"
	default:
		return "#337ab7"
	}
}

func AlertToTemplateData(a domain.Alert) TemplateData {
	info := a.Information
	if strings.TrimSpace(info) == "" {
		info = noInformation
	}
	return TemplateData{
		Status:      string(a.Status),
		StatusColor: statusColor(a.Status),
		ServiceName: a.ServiceName,
		HostName:    a.HostName,
		Information: info,
	}
}

// Subject is "{status} - {service} on {host}".
func Subject(a domain.Alert) string {
	return fmt.Sprintf("%s - %s on %s", a.Status, a.ServiceName, a.HostName)
}

// Render builds the full message for one alert.
func (t *Templates) Render(a domain.Alert) (Message, error) {
	data := AlertToTemplateData(a)
	var plain, html bytes.Buffer
	if err := t.plain.Execute(&plain, data); err != nil {
		return Message{}, fmt.Errorf("render plain: %w", err)
	}
	if err := t.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	return Message{Subject: Subject(a), Plain: strings.TrimRight(plain.String(), "\n"), HTML: html.String()}, nil
}
