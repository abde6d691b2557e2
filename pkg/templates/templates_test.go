package templates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyautoki/attio-hub/pkg/models"
)

func TestDefaultsRender(t *testing.T) {
	registry := Defaults()

	subject, body, err := registry.Render(string(models.Reminder24h), map[string]string{
		"name":         "Ada",
		"event_type":   "intro call",
		"start_time":   "Tue, 02 Sep 2026 10:00 CEST",
		"meeting_link": "https://meet.example.com/abc",
	})
	require.NoError(t, err)

	assert.Equal(t, "Reminder: your meeting is tomorrow", subject)
	assert.Contains(t, body, "Hi Ada,")
	assert.Contains(t, body, "intro call")
	assert.Contains(t, body, "https://meet.example.com/abc")
	assert.NotContains(t, body, "{{")
}

func TestRenderMissingVariable(t *testing.T) {
	registry := Defaults()

	_, body, err := registry.Render(string(models.Reminder1h), map[string]string{})
	require.NoError(t, err)
	assert.NotContains(t, body, "{{")
}

func TestRenderUnknownTemplate(t *testing.T) {
	registry := Defaults()

	_, _, err := registry.Render("nope", nil)
	assert.Error(t, err)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	content := `templates:
  confirmation:
    subject: "See you soon, {{name}}"
    body: "<p>Booked: {{event_type}}</p>"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	registry, err := Load(path)
	require.NoError(t, err)

	subject, body, err := registry.Render(string(models.ReminderConfirmation), map[string]string{
		"name":       "Ada",
		"event_type": "demo",
	})
	require.NoError(t, err)
	assert.Equal(t, "See you soon, Ada", subject)
	assert.Equal(t, "<p>Booked: demo</p>", body)

	// Untouched defaults still present
	_, _, err = registry.Render(string(models.Reminder24h), nil)
	assert.NoError(t, err)
}

func TestLoadRejectsIncompleteTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("templates:\n  broken:\n    subject: \"only subject\"\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
