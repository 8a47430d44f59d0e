package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// embedded subtitle stream of a media file
type SubtitleStream struct {
	Index    int
	Codec    string
	Language string
	Title    string
}

// JSON output from ffprobe -show_streams
type ffprobeStreams struct {
	Streams []struct {
		Index     int               `json:"index"`
		CodecName string            `json:"codec_name"`
		CodecType string            `json:"codec_type"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
}

// lists subtitle streams of mediaPath
func ProbeSubtitleStreams(ctx context.Context, paths BinaryPaths, mediaPath string) ([]SubtitleStream, error) {
	if _, err := os.Stat(mediaPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("file not found: %s", mediaPath)
	}

	cmd := exec.CommandContext(ctx, paths.FFprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "s",
		mediaPath,
	)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(out.Bytes())
}

func parseProbeOutput(data []byte) ([]SubtitleStream, error) {
	var probe ffprobeStreams
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	streams := make([]SubtitleStream, 0, len(probe.Streams))
	for _, s := range probe.Streams {
		if s.CodecType != "" && s.CodecType != "subtitle" {
			continue
		}
		streams = append(streams, SubtitleStream{
			Index:    s.Index,
			Codec:    s.CodecName,
			Language: strings.TrimSpace(s.Tags["language"]),
			Title:    s.Tags["title"],
		})
	}
	return streams, nil
}

// converts one embedded subtitle stream to an SRT file
func ExtractSubtitleStream(paths BinaryPaths, mediaPath string, streamIndex int, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	kwargs := ffmpeg.KwArgs{
		"map": fmt.Sprintf("0:%d", streamIndex),
		"c:s": "srt",
	}

	err := ffmpeg.Input(mediaPath).
		Output(outputPath, kwargs).
		OverWriteOutput().
		SetFfmpegPath(paths.FFmpeg).
		Run()
	if err != nil {
		return fmt.Errorf("ffmpeg subtitle extraction failed: %w", err)
	}

	return nil
}
