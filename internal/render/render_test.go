package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmitS1009/Constructure-AI/pkg/core"
	"github.com/AmitS1009/Constructure-AI/pkg/messages"
)

func answer(content string, sources ...core.Source) messages.Message {
	msg := messages.NewAssistantMessage()
	msg.Content = content
	msg.Sources = sources
	return msg
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "Door Schedule.pdf (p. 12)", SourceLabel(core.Source{DocName: "Door Schedule.pdf", PageNum: 12}))
}

func TestMarkdown(t *testing.T) {
	t.Run("renders content", func(t *testing.T) {
		out, err := Markdown(answer("**D-101** is rated.\n\n- 90 min\n- steel"))
		require.NoError(t, err)

		assert.Contains(t, out, `<article class="message assistant">`)
		assert.Contains(t, out, "<strong>D-101</strong>")
		assert.Contains(t, out, "<li>90 min</li>")
		assert.NotContains(t, out, `class="sources"`)
	})

	t.Run("renders sources with excerpt", func(t *testing.T) {
		out, err := Markdown(answer("See schedule.",
			core.Source{DocName: "doors.pdf", PageNum: 2, ExcerptText: `D-101 "90 min" <b>`}))
		require.NoError(t, err)

		assert.Contains(t, out, `<ul class="sources">`)
		assert.Contains(t, out, "doors.pdf (p. 2)")
		assert.Contains(t, out, "&lt;b&gt;")
		assert.NotContains(t, out, "<b>")
	})

	t.Run("omits raw html", func(t *testing.T) {
		out, err := Markdown(answer("before <script>alert(1)</script> after"))
		require.NoError(t, err)
		assert.NotContains(t, out, "<script>")
	})
}

func TestTranscript(t *testing.T) {
	question := messages.NewUserMessage("Which doors are fire rated?")
	reply := answer("D-101.", core.Source{DocName: "doors.pdf", PageNum: 2, ExcerptText: "D-101 90 min"})

	out, err := Transcript("Fire doors & frames", []messages.Message{question, reply})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Fire doors &amp; frames</title>")
	assert.Contains(t, out, `<article class="message user">`)
	assert.Contains(t, out, `<article class="message assistant">`)
	assert.Less(t, strings.Index(out, "Which doors are fire rated?"), strings.Index(out, "D-101."))
	assert.Contains(t, out, "doors.pdf (p. 2)")

	empty, err := Transcript("Empty", nil)
	require.NoError(t, err)
	assert.Contains(t, empty, "<h1>Empty</h1>")
}
