package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/orbitalshelf/server/models"
)

func TestParseAIJSONFencedBlock(t *testing.T) {
	text := "Here is the book data:\n```json\n" +
		`{"title": "三体", "author": "劉慈欣", "publisher": "早川書房", "total_pages": 424, "isbn": "9784150121570", "status": "買いたい", "tags": "SF, 中国文学"}` +
		"\n```\nLet me know if you need more."

	got, err := ParseAIJSON(text)
	require.NoError(t, err)
	assert.Equal(t, "三体", got.Title)
	assert.Equal(t, "劉慈欣", got.Author)
	assert.Equal(t, "早川書房", got.Publisher)
	assert.Equal(t, 424, got.TotalPages)
	assert.Equal(t, "9784150121570", got.ISBN)
	assert.Equal(t, models.StatusWish, got.Status)
	assert.Equal(t, models.TagList{"SF", "中国文学"}, got.Tags)
}

func TestParseAIJSONBareObject(t *testing.T) {
	got, err := ParseAIJSON(`  {"title": "t", "totalPages": 120}  `)
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
	assert.Equal(t, 120, got.TotalPages)
	assert.Equal(t, models.StatusWish, got.Status)
}

func TestParseAIJSONFenceWithoutLanguageTag(t *testing.T) {
	got, err := ParseAIJSON("```\n{\"title\": \"t\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "t", got.Title)
}

func TestParseAIJSONInvalidInput(t *testing.T) {
	for _, input := range []string{"not json", "", "```json\nstill not json\n```", "[1,2,3"} {
		_, err := ParseAIJSON(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseAIJSONStatusMapping(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"買いたい", models.StatusWish},
		{"読書中", models.StatusReading},
		{"読了", models.StatusFinished},
		{"wish", models.StatusWish},
		{"reading", models.StatusReading},
		{"finished", models.StatusFinished},
		{"積読", models.StatusWish}, // unrecognized defaults to wish
		{"", models.StatusWish},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got, err := ParseAIJSON(`{"title": "t", "status": "` + tt.label + `"}`)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestParseAIJSONLenientValues(t *testing.T) {
	got, err := ParseAIJSON(`{"title": "t", "tags": ["SF", " 翻訳 ", ""], "total_pages": "320"}`)
	require.NoError(t, err)
	assert.Equal(t, models.TagList{"SF", "翻訳"}, got.Tags)
	assert.Equal(t, 320, got.TotalPages)

	got, err = ParseAIJSON(`{"title": "t", "totalPages": 280}`)
	require.NoError(t, err)
	assert.Equal(t, 280, got.TotalPages)
}
