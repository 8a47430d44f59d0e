package captions

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vitorvargasdev/streamfluency/internal/subtitle"
)

const youtubeManifest = "captions.json"

// caption track listing saved alongside a YouTube video's json3 payloads
type youtubeCaptions struct {
	CaptionTracks []youtubeCaptionTrack `json:"captionTracks"`
}

type youtubeCaptionTrack struct {
	LanguageCode string `json:"languageCode"`
	VssID        string `json:"vssId"`
	File         string `json:"file"`
}

// serves json3 caption payloads captured from YouTube, laid out as
// <root>/<videoID>/captions.json plus one payload file per track
type YouTubeSource struct {
	root    string
	videoID string
	html    bool
}

func NewYouTubeSource(root, videoID string, html bool) *YouTubeSource {
	return &YouTubeSource{root: root, videoID: videoID, html: html}
}

func (s *YouTubeSource) videoDir() string {
	return filepath.Join(s.root, s.videoID)
}

func (s *YouTubeSource) captionTracks() ([]youtubeCaptionTrack, error) {
	data, err := os.ReadFile(filepath.Join(s.videoDir(), youtubeManifest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, newError(CodePlayerNotFound, "", "video "+s.videoID+" not found", err)
		}
		return nil, newError(CodeFetchFailed, "", "failed to read caption manifest", err)
	}

	var manifest youtubeCaptions
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, newError(CodeParseFailed, "", "invalid caption manifest", err)
	}
	if len(manifest.CaptionTracks) == 0 {
		return nil, newError(CodeNoCaptions, "", "no captions available for this video", nil)
	}
	return manifest.CaptionTracks, nil
}

func (s *YouTubeSource) FetchSegments(ctx context.Context, lang string) (subtitle.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tracks, err := s.captionTracks()
	if err != nil {
		if IsUnavailable(err) {
			return subtitle.Track{}, nil
		}
		return nil, err
	}

	var found *youtubeCaptionTrack
	for i := range tracks {
		if tracks[i].LanguageCode == lang {
			found = &tracks[i]
			break
		}
	}
	if found == nil {
		return subtitle.Track{}, nil
	}
	if found.File == "" {
		return nil, newError(CodeURLNotFound, lang, "caption track has no payload", nil)
	}

	data, err := os.ReadFile(filepath.Join(s.videoDir(), found.File))
	if err != nil {
		return nil, newError(CodeFetchFailed, lang, "failed to fetch subtitles", err)
	}

	track, err := subtitle.ParseJSON3(data, s.html)
	if err != nil {
		return nil, newError(CodeParseFailed, lang, "failed to process subtitles", err)
	}
	return track, nil
}
