// Package templates renders the transactional emails sent for bookings.
// Templates live in a YAML file so operators can edit copy without a rebuild.
package templates

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

// TemplateWelcome is the email sent after a lead-capture form submission
const TemplateWelcome = "welcome"

// Template is one email template with {{variable}} placeholders
type Template struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

// Registry holds the loaded templates keyed by name
type Registry struct {
	templates map[string]Template
}

type templateFile struct {
	Templates map[string]Template `yaml:"templates"`
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Defaults returns a registry with the built-in templates
func Defaults() *Registry {
	return &Registry{templates: map[string]Template{
		string(models.ReminderConfirmation): {
			Subject: "Your meeting is confirmed",
			Body:    "<p>Hi {{name}},</p><p>Your {{event_type}} on {{start_time}} is confirmed.</p><p><a href=\"{{meeting_link}}\">Join the meeting</a></p>",
		},
		string(models.Reminder24h): {
			Subject: "Reminder: your meeting is tomorrow",
			Body:    "<p>Hi {{name}},</p><p>A reminder that your {{event_type}} is tomorrow at {{start_time}}.</p><p><a href=\"{{meeting_link}}\">Join the meeting</a></p>",
		},
		string(models.Reminder1h): {
			Subject: "Starting soon: your meeting",
			Body:    "<p>Hi {{name}},</p><p>Your {{event_type}} starts in one hour, at {{start_time}}.</p><p><a href=\"{{meeting_link}}\">Join the meeting</a></p>",
		},
		TemplateWelcome: {
			Subject: "Thanks for reaching out",
			Body:    "<p>Hi {{name}},</p><p>Thanks for getting in touch. We received your message and will get back to you shortly.</p>",
		},
	}}
}

// Load reads templates from a YAML file, overlaying them on the defaults so a
// partial file only replaces the names it defines
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse template file: %w", err)
	}

	registry := Defaults()
	for name, tmpl := range file.Templates {
		if tmpl.Subject == "" || tmpl.Body == "" {
			return nil, fmt.Errorf("template %q must have a subject and a body", name)
		}
		registry.templates[name] = tmpl
	}

	return registry, nil
}

// Render produces the subject and body for a template. Placeholders with no
// matching variable render as an empty string rather than leaking the tag.
func (r *Registry) Render(name string, vars map[string]string) (subject string, body string, err error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template: %s", name)
	}

	substitute := func(s string) string {
		return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
			key := placeholderPattern.FindStringSubmatch(match)[1]
			return vars[key]
		})
	}

	return substitute(tmpl.Subject), substitute(tmpl.Body), nil
}

// Names returns the names of all loaded templates
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}
