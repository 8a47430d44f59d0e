package captions

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vitorvargasdev/streamfluency/internal/apperr"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

var dirExtensions = []string{".srt", ".vtt", ".json3", ".xml"}

// reads <base>.<lang>.<ext> caption files from a directory
type DirSource struct {
	dir  string
	base string
}

func NewDirSource(dir, base string) *DirSource {
	return &DirSource{dir: dir, base: base}
}

func (s *DirSource) FetchSegments(ctx context.Context, lang string) (subtitle.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(s.dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return subtitle.Track{}, nil
		}
		return nil, newError(CodeFetchFailed, lang, "caption directory not available", err)
	}

	for _, ext := range dirExtensions {
		path := filepath.Join(s.dir, s.base+"."+lang+ext)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, newError(CodeFetchFailed, lang, "failed to stat caption file", err)
		}

		track, err := subtitle.Open(path)
		if err != nil {
			if apperr.IsCode(err, apperr.ParseFailed) {
				return nil, newError(CodeParseFailed, lang, "failed to parse "+filepath.Base(path), err)
			}
			return nil, newError(CodeFetchFailed, lang, "failed to read "+filepath.Base(path), err)
		}
		return track, nil
	}

	return subtitle.Track{}, nil
}

// languages with a caption file present
func (s *DirSource) Available() ([]string, error) {
	var langs []string
	seen := map[string]bool{}
	for _, ext := range dirExtensions {
		matches, err := filepath.Glob(filepath.Join(s.dir, s.base+".*"+ext))
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			name := filepath.Base(m)
			lang := name[len(s.base)+1 : len(name)-len(ext)]
			if lang != "" && !seen[lang] {
				seen[lang] = true
				langs = append(langs, lang)
			}
		}
	}
	return langs, nil
}
