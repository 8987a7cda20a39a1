package email

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinReportAlertTemplate(t *testing.T) {
	tm, err := NewBuiltinTemplateManager()
	require.NoError(t, err)

	html, err := tm.Render(TemplateReportAlert, TemplateData{
		"Title":       "Flood alert",
		"Name":        "River <overflow>",
		"Category":    "flood",
		"DangerLevel": 9,
		"Latitude":    23.81,
		"Longitude":   90.41,
		"Source":      "user",
		"ReportID":    "r-1",
		"CreatedAt":   "2024-05-01T12:00:00Z",
	})
	require.NoError(t, err)
	assert.Contains(t, html, "Flood alert")
	assert.Contains(t, html, "9 / 10")
	assert.Contains(t, html, "23.81000, 90.41000")
	assert.Contains(t, html, "River &lt;overflow&gt;")
}

func TestRender_UnknownTemplate(t *testing.T) {
	_, err := NewTemplateManager().Render("missing", nil)
	assert.Error(t, err)
}

func TestGomailProvider_RequiresHost(t *testing.T) {
	p := NewGomailProvider(&SMTPConfig{Port: 587}, nil)
	err := p.Send(context.Background(), &Email{To: []string{"a@example.com"}, Subject: "x", Body: "y"})
	assert.Error(t, err)
}
