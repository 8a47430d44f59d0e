package captions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vitorvargasdev/streamfluency/internal/ffmpeg"
	"github.com/vitorvargasdev/streamfluency/internal/logging"
	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

// ISO 639-2 codes ffprobe reports for the registered languages
var iso6392 = map[string]string{
	"eng": "en",
	"por": "pt",
	"jpn": "ja",
	"spa": "es",
	"fra": "fr",
	"fre": "fr",
	"deu": "de",
	"ger": "de",
	"ita": "it",
}

// extracts embedded subtitle streams from a local media file
type FFmpegSource struct {
	mediaPath string
	paths     ffmpeg.BinaryPaths
	tempDir   string
	logger    *logging.Logger
}

func NewFFmpegSource(mediaPath string, paths ffmpeg.BinaryPaths, tempDir string, logger *logging.Logger) *FFmpegSource {
	return &FFmpegSource{
		mediaPath: mediaPath,
		paths:     paths,
		tempDir:   tempDir,
		logger:    logging.OrNop(logger),
	}
}

func (s *FFmpegSource) FetchSegments(ctx context.Context, lang string) (subtitle.Track, error) {
	streams, err := ffmpeg.ProbeSubtitleStreams(ctx, s.paths, s.mediaPath)
	if err != nil {
		return nil, newError(CodeFetchFailed, lang, "failed to probe media", err)
	}
	if len(streams) == 0 {
		return subtitle.Track{}, nil
	}

	stream, ok := pickStream(streams, lang)
	if !ok {
		return subtitle.Track{}, nil
	}

	dir, err := os.MkdirTemp(s.tempDir, "streamfluency-captions-*")
	if err != nil {
		return nil, newError(CodeFetchFailed, lang, "failed to create temp dir", err)
	}
	defer func() {
		_ = os.RemoveAll(dir)
	}()

	out := filepath.Join(dir, fmt.Sprintf("stream-%d.srt", stream.Index))
	s.logger.Debugw("Extracting subtitle stream",
		"media", s.mediaPath,
		"stream", stream.Index,
		"codec", stream.Codec,
		"language", lang,
	)
	if err := ffmpeg.ExtractSubtitleStream(s.paths, s.mediaPath, stream.Index, out); err != nil {
		return nil, newError(CodeFetchFailed, lang, "failed to extract subtitle stream", err)
	}

	track, err := subtitle.Open(out)
	if err != nil {
		return nil, newError(CodeParseFailed, lang, "failed to parse extracted subtitles", err)
	}
	return track, nil
}

// first stream whose language tag matches lang
func pickStream(streams []ffmpeg.SubtitleStream, lang string) (ffmpeg.SubtitleStream, bool) {
	for _, st := range streams {
		code := st.Language
		if short, ok := iso6392[code]; ok {
			code = short
		}
		if MatchLanguage(code, lang) {
			return st, true
		}
	}
	return ffmpeg.SubtitleStream{}, false
}
