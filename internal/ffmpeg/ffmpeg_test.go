package ffmpeg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePrefersExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	ffmpegPath := filepath.Join(dir, "ffmpeg")
	ffprobePath := filepath.Join(dir, "ffprobe")

	got, err := Resolve(BinaryPaths{FFmpeg: ffmpegPath, FFprobe: ffprobePath})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.FFmpeg != ffmpegPath || got.FFprobe != ffprobePath {
		t.Errorf("Resolve() = %+v", got)
	}
}

func TestResolveFromEnv(t *testing.T) {
	t.Setenv(envFFmpegPath, "/opt/ffmpeg")
	t.Setenv(envFFprobePath, "/opt/ffprobe")

	got, err := Resolve(BinaryPaths{})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if got.FFmpeg != "/opt/ffmpeg" || got.FFprobe != "/opt/ffprobe" {
		t.Errorf("Resolve() = %+v", got)
	}
}

func TestResolveNotFound(t *testing.T) {
	t.Setenv(envFFmpegPath, "")
	t.Setenv(envFFprobePath, "")
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	_, err := Resolve(BinaryPaths{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParseProbeOutput(t *testing.T) {
	data := []byte(`{"streams": [
		{"index": 2, "codec_name": "subrip", "codec_type": "subtitle", "tags": {"language": "eng", "title": "English"}},
		{"index": 3, "codec_name": "ass", "codec_type": "subtitle", "tags": {"language": "por"}},
		{"index": 1, "codec_name": "aac", "codec_type": "audio"}
	]}`)

	streams, err := parseProbeOutput(data)
	if err != nil {
		t.Fatalf("parseProbeOutput error: %v", err)
	}
	if len(streams) != 2 {
		t.Fatalf("expected 2 subtitle streams, got %d", len(streams))
	}
	if streams[0].Index != 2 || streams[0].Language != "eng" || streams[0].Title != "English" {
		t.Errorf("unexpected stream: %+v", streams[0])
	}
}

func TestExtractSubtitleStreamIntegration(t *testing.T) {
	media := os.Getenv("STREAMFLUENCY_TEST_MEDIA")
	if media == "" {
		t.Skip("STREAMFLUENCY_TEST_MEDIA not set; skipping integration test")
	}
	paths, err := Ensure()
	if err != nil {
		t.Skipf("ffmpeg not available: %v", err)
	}

	streams, err := ProbeSubtitleStreams(t.Context(), paths, media)
	if err != nil {
		t.Fatalf("ProbeSubtitleStreams error: %v", err)
	}
	if len(streams) == 0 {
		t.Skip("media has no subtitle streams")
	}

	out := filepath.Join(t.TempDir(), "track.srt")
	if err := ExtractSubtitleStream(paths, media, streams[0].Index, out); err != nil {
		t.Fatalf("ExtractSubtitleStream error: %v", err)
	}
	if info, err := os.Stat(out); err != nil || info.Size() == 0 {
		t.Errorf("expected non-empty output, stat err=%v", err)
	}
}
