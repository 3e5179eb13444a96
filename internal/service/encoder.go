package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	transcodedSuffix = "_transcoded"
	transcodedExt    = ".mp4"
	transcodedMime   = "video/mp4"
)

// Encoder describes how the external encoder is invoked. Any binary that
// accepts ffmpeg's arguments can be used.
type Encoder struct {
	Path         string
	VideoCodec   string
	Preset       string
	CRF          int
	AudioCodec   string
	AudioBitrate string

	// MaxDuration kills encodes that run longer. Zero means no limit.
	MaxDuration time.Duration
}

func DefaultEncoder() Encoder {
	return Encoder{
		Path:         "ffmpeg",
		VideoCodec:   "libx264",
		Preset:       "veryslow",
		CRF:          23,
		AudioCodec:   "aac",
		AudioBitrate: "128k",
	}
}

// Args returns the fixed argument set for one transcode
func (e Encoder) Args(input, output string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-c:v", e.VideoCodec, "-preset", e.Preset, "-crf", strconv.Itoa(e.CRF),
		"-c:a", e.AudioCodec, "-b:a", e.AudioBitrate,
		"-movflags", "+faststart",
		output,
	}
}

// Version runs the encoder with -version and returns the first line
func (e Encoder) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, e.Path, "-version")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to run encoder, %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	line, _ := bufio.NewReader(&stdout).ReadString('\n')
	return strings.TrimSpace(line), nil
}

// TranscodedName derives the output name of a transcode: the input's
// extension is dropped, a suffix is added and the container is forced to mp4.
// clip.mov -> clip_transcoded.mp4
func TranscodedName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + transcodedSuffix + transcodedExt
}
