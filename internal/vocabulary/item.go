package vocabulary

import (
	"encoding/json"
	"strings"
)

// saved word or phrase
type Item struct {
	ID             string   `json:"id" validate:"required"`
	Text           string   `json:"text" validate:"required"`
	Context        *string  `json:"context,omitempty"`
	Translation    string   `json:"translation,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	Timestamp      int64    `json:"timestamp"`
	VideoURL       string   `json:"videoUrl,omitempty"`
	VideoTitle     string   `json:"videoTitle,omitempty"`
	VideoTimestamp *float64 `json:"videoTimestamp,omitempty"`
	Language       string   `json:"language,omitempty"`
}

// fields supplied when saving a new item
type Draft struct {
	Text           string   `json:"text"`
	Context        *string  `json:"context,omitempty"`
	Translation    string   `json:"translation,omitempty"`
	Notes          string   `json:"notes,omitempty"`
	VideoURL       string   `json:"videoUrl,omitempty"`
	VideoTitle     string   `json:"videoTitle,omitempty"`
	VideoTimestamp *float64 `json:"videoTimestamp,omitempty"`
	Language       string   `json:"language,omitempty"`
}

// partial update, nil fields are left unchanged
type Patch struct {
	Text           *string  `json:"text,omitempty"`
	Context        *string  `json:"context,omitempty"`
	Translation    *string  `json:"translation,omitempty"`
	Notes          *string  `json:"notes,omitempty"`
	Timestamp      *int64   `json:"timestamp,omitempty"`
	VideoURL       *string  `json:"videoUrl,omitempty"`
	VideoTitle     *string  `json:"videoTitle,omitempty"`
	VideoTimestamp *float64 `json:"videoTimestamp,omitempty"`
	Language       *string  `json:"language,omitempty"`
}

func (p Patch) apply(item Item) Item {
	if p.Text != nil {
		item.Text = *p.Text
	}
	if p.Context != nil {
		ctx := *p.Context
		item.Context = &ctx
	}
	if p.Translation != nil {
		item.Translation = *p.Translation
	}
	if p.Notes != nil {
		item.Notes = *p.Notes
	}
	if p.Timestamp != nil {
		item.Timestamp = *p.Timestamp
	}
	if p.VideoURL != nil {
		item.VideoURL = *p.VideoURL
	}
	if p.VideoTitle != nil {
		item.VideoTitle = *p.VideoTitle
	}
	if p.VideoTimestamp != nil {
		ts := *p.VideoTimestamp
		item.VideoTimestamp = &ts
	}
	if p.Language != nil {
		item.Language = *p.Language
	}
	return item
}

// lowercased and trimmed form used for duplicate detection
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (i Item) matches(text string, context *string) bool {
	if normalize(i.Text) != normalize(text) {
		return false
	}
	if i.Context == nil || context == nil {
		return i.Context == nil && context == nil
	}
	return normalize(*i.Context) == normalize(*context)
}

// shape required of persisted entries, fields of the wrong type fail to decode
type storedShape struct {
	ID        *string `json:"id"`
	Text      *string `json:"text"`
	Timestamp *int64  `json:"timestamp"`
}

// decodes a persisted list keeping only well-formed entries
func decodeItems(data []byte) ([]Item, int, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	items := make([]Item, 0, len(raw))
	dropped := 0
	for _, entry := range raw {
		var shape storedShape
		if err := json.Unmarshal(entry, &shape); err != nil || shape.ID == nil || shape.Text == nil || shape.Timestamp == nil {
			dropped++
			continue
		}
		var item Item
		if err := json.Unmarshal(entry, &item); err != nil {
			dropped++
			continue
		}
		items = append(items, item)
	}
	return items, dropped, nil
}
