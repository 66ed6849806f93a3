// Package templates holds the HTML templates compiled into the binary.
package templates

import (
	"embed"
	"html/template"
)

// EmbeddedTemplates provides read-only access to template files compiled into the binary.
//
//go:embed *.tmpl
var EmbeddedTemplates embed.FS

// OptionsPage is the settings form template
const OptionsPage = "options.html.tmpl"

// Parse parses one embedded template by file name
func Parse(name string) (*template.Template, error) {
	return template.New(name).ParseFS(EmbeddedTemplates, name)
}
