package ffmpeg

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	envFFmpegPath  = "STREAMFLUENCY_FFMPEG_PATH"
	envFFprobePath = "STREAMFLUENCY_FFPROBE_PATH"
)

var ErrNotFound = errors.New("ffmpeg binaries not found")

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

var (
	ensureOnce sync.Once
	ensureErr  error
	ensurePath BinaryPaths
)

// resolves binaries once per process from env and PATH
func Ensure() (BinaryPaths, error) {
	ensureOnce.Do(func() {
		ensurePath, ensureErr = Resolve(BinaryPaths{})
	})
	return ensurePath, ensureErr
}

// resolves binaries: explicit paths, then env vars, then PATH, then the user cache dir
func Resolve(explicit BinaryPaths) (BinaryPaths, error) {
	paths := explicit
	if paths.FFmpeg == "" {
		paths.FFmpeg = os.Getenv(envFFmpegPath)
	}
	if paths.FFprobe == "" {
		paths.FFprobe = os.Getenv(envFFprobePath)
	}

	if paths.FFmpeg == "" {
		if found, err := exec.LookPath("ffmpeg"); err == nil {
			paths.FFmpeg = found
		}
	}
	if paths.FFprobe == "" {
		if found, err := exec.LookPath("ffprobe"); err == nil {
			paths.FFprobe = found
		}
	}

	if paths.FFmpeg == "" || paths.FFprobe == "" {
		cached := cachedPaths()
		if paths.FFmpeg == "" && fileExists(cached.FFmpeg) {
			paths.FFmpeg = cached.FFmpeg
		}
		if paths.FFprobe == "" && fileExists(cached.FFprobe) {
			paths.FFprobe = cached.FFprobe
		}
	}

	if paths.FFmpeg == "" || paths.FFprobe == "" {
		return BinaryPaths{}, fmt.Errorf(
			"%w: install ffmpeg or set %s and %s",
			ErrNotFound,
			envFFmpegPath,
			envFFprobePath,
		)
	}
	return paths, nil
}

// manually installed binaries under the user cache dir
func cachedPaths() BinaryPaths {
	cacheDir, err := os.UserCacheDir()
	if err != nil || cacheDir == "" {
		cacheDir = os.TempDir()
	}
	installDir := filepath.Join(cacheDir, "streamfluency", "ffmpeg", runtime.GOOS+"-"+runtime.GOARCH)
	suffix := executableSuffix()
	return BinaryPaths{
		FFmpeg:  filepath.Join(installDir, "ffmpeg"+suffix),
		FFprobe: filepath.Join(installDir, "ffprobe"+suffix),
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

func executableSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
