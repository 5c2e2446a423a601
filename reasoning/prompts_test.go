package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurationPrompt_NoURLAndEscaped(t *testing.T) {
	req := CurationRequest{
		Category: "technews",
		Items: []CurationItem{
			{Index: 0, Title: "GPUs & <kernels>", Description: "fast", Source: "venturebeat"},
			{Index: 1, Title: "Second", Source: "ai_times"},
		},
		Min: 1,
		Max: 3,
	}

	prompt, err := curationPrompt(req)

	require.NoError(t, err)
	assert.Contains(t, prompt, `<article index="0">`)
	assert.Contains(t, prompt, "GPUs &amp; &lt;kernels&gt;")
	assert.Contains(t, prompt, `<article index="1"><source>ai_times</source><title>Second</title></article>`)
	assert.NotContains(t, prompt, "http")
	assert.NotContains(t, prompt, "previous answer")

	req.Correction = "index 7 is out of range"
	prompt, err = curationPrompt(req)
	require.NoError(t, err)
	assert.Contains(t, prompt, "index 7 is out of range")
}

func TestCurationSystem(t *testing.T) {
	s := curationSystem(CurationRequest{Min: 1, Max: 3})
	assert.Contains(t, s, "between 1 and 3")
	assert.Contains(t, s, "in English")
}

func TestCurationSchema_MaxItems(t *testing.T) {
	s := curationSchema(CurationRequest{Max: 3})
	require.NotNil(t, s.Properties["chosen"].MaxItems)
	assert.EqualValues(t, 3, *s.Properties["chosen"].MaxItems)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(` {"a":1} `))
}

func TestFramingResponse_IntroFor(t *testing.T) {
	r := FramingResponse{Intros: []SectionIntro{{Category: "academic", Intro: "Papers."}}}
	assert.Equal(t, "Papers.", r.IntroFor("academic"))
	assert.Empty(t, r.IntroFor("technews"))
}
