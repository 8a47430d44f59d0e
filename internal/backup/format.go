package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
	"github.com/vitorvargasdev/streamfluency/internal/settings"
	"github.com/vitorvargasdev/streamfluency/internal/vocabulary"
)

const (
	Version       = "1.0.0"
	ManualFolder  = "streamfluency-backups"
	AutoFolder    = "streamfluency-backups-auto"
	FileExtension = ".json"
	MimeType      = "application/json"
	MaxFileSize   = 10 * 1024 * 1024
)

var (
	ErrInvalidFormat = apperr.New(apperr.InvalidInput, "", "invalid backup file format")
	ErrFileTooLarge  = apperr.New(apperr.InvalidInput, "", fmt.Sprintf("file too large (max %dMB)", MaxFileSize/1024/1024))
)

var (
	versionPattern  = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	prefixedPattern = regexp.MustCompile(`streamfluency-(\d{2})-(\d{2})-(\d{4})-(\d+)\.json$`)
	plainPattern    = regexp.MustCompile(`(\d{2})-(\d{2})-(\d{4})-(\d+)\.json$`)
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	bracketPattern  = regexp.MustCompile(`[<>]`)
)

type Data struct {
	Vocabulary []vocabulary.Item `json:"vocabulary"`
	Settings   settings.Settings `json:"settings"`
}

// exported vocabulary and settings
type Backup struct {
	Version   string `json:"version"`
	Timestamp int64  `json:"timestamp"`
	Data      Data   `json:"data"`
}

func (b Backup) Encode() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// backup file found in a sink
type Metadata struct {
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	Size      int64  `json:"size,omitempty"`
	CreatedAt int64  `json:"createdAt"`
}

// streamfluency-DD-MM-YYYY-<epoch ms>.json, date in at's location
func Filename(at time.Time) string {
	return fmt.Sprintf("streamfluency-%s-%d%s", at.Format("02-01-2006"), at.UnixMilli(), FileExtension)
}

// accepts the prefixed form and the older bare DD-MM-YYYY-<ts>.json form
func ParseFilename(name string) (Metadata, bool) {
	if m := prefixedPattern.FindStringSubmatch(name); m != nil {
		ts, err := strconv.ParseInt(m[4], 10, 64)
		if err != nil {
			return Metadata{}, false
		}
		return Metadata{Filename: name, Path: name, CreatedAt: ts}, true
	}
	if m := plainPattern.FindStringSubmatch(name); m != nil {
		ts, err := strconv.ParseInt(m[4], 10, 64)
		if err != nil {
			return Metadata{}, false
		}
		return Metadata{Filename: path.Base(name), Path: name, CreatedAt: ts}, true
	}
	return Metadata{}, false
}

// shape checks run on the raw document before decoding into typed fields
type rawBackup struct {
	Version   json.RawMessage `json:"version"`
	Timestamp json.RawMessage `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type rawData struct {
	Vocabulary json.RawMessage `json:"vocabulary"`
	Settings   json.RawMessage `json:"settings"`
}

func invalid(reason string) error {
	return &apperr.Error{Code: apperr.InvalidInput, Op: "backup.Validate", Msg: ErrInvalidFormat.Msg, Err: fmt.Errorf("%s", reason)}
}

// decodes and validates content, settings are overlaid on base.
// Timestamps in the future or older than a year only produce warnings.
func Validate(content []byte, base settings.Settings, now time.Time) (Backup, []string, error) {
	var raw rawBackup
	if err := json.Unmarshal(content, &raw); err != nil {
		return Backup{}, nil, &apperr.Error{Code: apperr.InvalidInput, Op: "backup.Validate", Msg: ErrInvalidFormat.Msg, Err: err}
	}

	var version string
	if kind(raw.Version) != '"' || json.Unmarshal(raw.Version, &version) != nil {
		return Backup{}, nil, invalid("version must be a string")
	}
	var timestamp float64
	if kind(raw.Timestamp) != '0' || json.Unmarshal(raw.Timestamp, &timestamp) != nil {
		return Backup{}, nil, invalid("timestamp must be a number")
	}
	if kind(raw.Data) != '{' {
		return Backup{}, nil, invalid("data must be an object")
	}
	var data rawData
	if err := json.Unmarshal(raw.Data, &data); err != nil {
		return Backup{}, nil, invalid("data must be an object")
	}
	if kind(data.Vocabulary) != '[' {
		return Backup{}, nil, invalid("data.vocabulary must be an array")
	}
	if kind(data.Settings) != '{' {
		return Backup{}, nil, invalid("data.settings must be an object")
	}
	if !versionPattern.MatchString(version) {
		return Backup{}, nil, invalid("version must look like major.minor.patch")
	}

	var items []vocabulary.Item
	if err := json.Unmarshal(data.Vocabulary, &items); err != nil {
		return Backup{}, nil, &apperr.Error{Code: apperr.InvalidInput, Op: "backup.Validate", Msg: ErrInvalidFormat.Msg, Err: err}
	}
	merged, err := settings.Overlay(base, data.Settings)
	if err != nil {
		return Backup{}, nil, &apperr.Error{Code: apperr.InvalidInput, Op: "backup.Validate", Msg: ErrInvalidFormat.Msg, Err: err}
	}

	var warnings []string
	ts := int64(timestamp)
	if ts > now.UnixMilli() {
		warnings = append(warnings, fmt.Sprintf("backup timestamp %s is in the future", time.UnixMilli(ts).UTC().Format(time.RFC3339)))
	} else if ts < now.Add(-365*24*time.Hour).UnixMilli() {
		warnings = append(warnings, fmt.Sprintf("backup timestamp %s is more than a year old", time.UnixMilli(ts).UTC().Format(time.RFC3339)))
	}

	if items == nil {
		items = []vocabulary.Item{}
	}
	return Backup{
		Version:   version,
		Timestamp: ts,
		Data:      Data{Vocabulary: items, Settings: merged},
	}, warnings, nil
}

// first significant byte of a JSON value, '0' for numbers
func kind(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	switch c := trimmed[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
		return '0'
	default:
		return c
	}
}

// strips markup from the free-text fields of every item
func Sanitize(b Backup) Backup {
	items := make([]vocabulary.Item, len(b.Data.Vocabulary))
	for i, item := range b.Data.Vocabulary {
		item.Text = sanitizeString(item.Text)
		if item.Context != nil {
			clean := sanitizeString(*item.Context)
			item.Context = &clean
		}
		item.Translation = sanitizeString(item.Translation)
		item.Notes = sanitizeString(item.Notes)
		item.VideoTitle = sanitizeString(item.VideoTitle)
		items[i] = item
	}
	b.Data.Vocabulary = items
	return b
}

func sanitizeString(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = bracketPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
