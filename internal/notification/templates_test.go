package notification

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_StatusUpdate(t *testing.T) {
	r, err := NewRenderer("https://portal.example.com")
	require.NoError(t, err)

	subject, text, html, err := r.Render(TemplateApplicationStatusUpdate, map[string]any{
		"ScholarshipTitle": "STEM Futures",
		"ApplicationID":    "app-42",
		"Status":           "accepted",
		"PreviousStatus":   "under_review",
		"Comment":          "Outstanding essay.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Your application for STEM Futures is now accepted", subject)
	assert.False(t, strings.HasPrefix(text, "Subject:"))
	assert.Contains(t, text, "Outstanding essay.")
	assert.Contains(t, html, "<blockquote>")
	assert.Contains(t, html, `href="https://portal.example.com/applications/app-42"`)
}

func TestRenderer_OptionalCommentOmitted(t *testing.T) {
	r, err := NewRenderer("https://portal.example.com")
	require.NoError(t, err)

	_, _, html, err := r.Render(TemplateApplicationStatusUpdate, map[string]any{
		"ScholarshipTitle": "STEM Futures",
		"Status":           "rejected",
	})
	require.NoError(t, err)
	assert.NotContains(t, html, "<blockquote>")
}

func TestRenderer_AllTemplatesLoad(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	for _, id := range []Template{TemplateWelcome, TemplateApplicationConfirmation, TemplateApplicationStatusUpdate, TemplateReviewAssigned} {
		subject, _, html, err := r.Render(id, map[string]any{"ScholarshipTitle": "X", "FirstName": "Ada"})
		require.NoError(t, err, id)
		assert.NotEmpty(t, subject, id)
		assert.NotEmpty(t, html, id)
	}
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r, err := NewRenderer("")
	require.NoError(t, err)

	_, _, _, err = r.Render(Template("missing"), nil)
	assert.Error(t, err)
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME(Message{
		To:      "ada@example.com",
		From:    "noreply@example.com",
		Subject: "Hello",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	}))

	assert.Contains(t, raw, "To: ada@example.com\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Contains(t, raw, "plain body")
	assert.Contains(t, raw, "<p>html body</p>")
	assert.True(t, strings.HasSuffix(raw, "--"+mimeBoundary+"--\r\n"))
}

func TestLogSender(t *testing.T) {
	s := NewLogSender(slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, "log", s.Name())
	assert.NoError(t, s.Send(context.Background(), Message{To: "ada@example.com"}))
}
