package library

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/orbitalshelf/server/models"
)

var fenceRE = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// AI assistants label status in the prompt's language; anything unrecognized
// falls back to wish.
var statusLabels = map[string]string{
	"買いたい":                 models.StatusWish,
	"読書中":                  models.StatusReading,
	"読了":                   models.StatusFinished,
	models.StatusWish:     models.StatusWish,
	models.StatusReading:  models.StatusReading,
	models.StatusFinished: models.StatusFinished,
}

// ParseAIJSON parses book JSON pasted from an AI chat. The payload may be
// wrapped in a fenced code block; the inner content is used if so, otherwise
// the trimmed whole string. Recognized keys are mapped onto a BookInput;
// values are coerced leniently since AI output mixes numbers, strings, and
// lists freely. A string that is not valid JSON yields an error, not a panic.
func ParseAIJSON(text string) (*models.BookInput, error) {
	raw := strings.TrimSpace(text)
	if m := fenceRE.FindStringSubmatch(raw); m != nil {
		raw = strings.TrimSpace(m[1])
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("parse book JSON: %w", err)
	}

	totalPages := intValue(data["total_pages"])
	if totalPages == 0 {
		totalPages = intValue(data["totalPages"])
	}
	return &models.BookInput{
		Title:      stringValue(data["title"]),
		Author:     stringValue(data["author"]),
		Publisher:  stringValue(data["publisher"]),
		TotalPages: totalPages,
		ISBN:       stringValue(data["isbn"]),
		Status:     mapStatus(stringValue(data["status"])),
		Tags:       tagsValue(data["tags"]),
	}, nil
}

func mapStatus(s string) string {
	if mapped, ok := statusLabels[strings.TrimSpace(s)]; ok {
		return mapped
	}
	return models.StatusWish
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		if n < 0 {
			return 0
		}
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && i > 0 {
			return i
		}
	}
	return 0
}

func tagsValue(v any) models.TagList {
	switch t := v.(type) {
	case string:
		return models.TagList(models.SplitTags(t))
	case []any:
		tags := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return models.TagList(models.NormalizeTags(tags))
	}
	return nil
}
