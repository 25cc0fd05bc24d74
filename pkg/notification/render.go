package notification

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
)

func renderText(name, text string, data map[string]string) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderHtml(name, html string, data map[string]string) (string, error) {
	if html == "" {
		return "", nil
	}
	tmpl, err := htmltemplate.New(name).Option("missingkey=error").Parse(html)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
