package subtitle

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
)

// opens a caption file and parses it by extension
func Open(path string) (Track, error) {
	format, ok := FormatFromExtension(path)
	if !ok {
		return nil, apperr.New(apperr.ParseFailed, "subtitle.Open",
			fmt.Sprintf("unsupported subtitle format: %s", filepath.Ext(path)))
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open subtitle file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	return Parse(format, file)
}

// parses r in the given format
func Parse(format Format, r io.Reader) (Track, error) {
	var (
		track Track
		err   error
	)
	switch format {
	case FormatSRT:
		track, err = ParseSRT(r)
	case FormatVTT:
		track, err = ParseVTT(r)
	case FormatJSON3, FormatTimedText:
		var data []byte
		data, err = io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read captions: %w", err)
		}
		if format == FormatJSON3 {
			track, err = ParseJSON3(bytes.TrimSpace(data), false)
		} else {
			track, err = ParseTimedText(data)
		}
	default:
		return nil, apperr.New(apperr.ParseFailed, "subtitle.Parse",
			fmt.Sprintf("unsupported format: %s", format))
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.ParseFailed, "subtitle.Parse", err)
	}
	if track == nil {
		track = Track{}
	}
	return track, nil
}

// subtitle format based on file extension
func FormatFromExtension(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".srt":
		return FormatSRT, true
	case ".vtt":
		return FormatVTT, true
	case ".json", ".json3":
		return FormatJSON3, true
	case ".xml", ".srv1":
		return FormatTimedText, true
	default:
		return "", false
	}
}

// file extension for a format
func ExtensionForFormat(format Format) string {
	switch format {
	case FormatVTT:
		return ".vtt"
	case FormatJSON3:
		return ".json3"
	case FormatTimedText:
		return ".xml"
	default:
		return ".srt"
	}
}
