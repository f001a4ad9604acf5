package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"kgicweb/logger"
)

// ErrProberUnavailable ffprobe 不存在
var ErrProberUnavailable = errors.New("ffprobe not available")

const probeTimeout = 30 * time.Second

// Prober reads audio durations with ffprobe.
type Prober struct {
	ffprobePath string
}

// NewProber returns nil when ffprobe cannot be found, so callers can skip probing.
func NewProber(ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	resolved, err := exec.LookPath(ffprobePath)
	if err != nil {
		logger.Info("ffprobe not found, audio durations will not be probed", logger.String("path", ffprobePath))
		return nil
	}
	return &Prober{ffprobePath: resolved}
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeFile returns the duration of inputFile in seconds.
func (p *Prober) ProbeFile(ctx context.Context, inputFile string) (float64, error) {
	if p == nil {
		return 0, ErrProberUnavailable
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe execution failed for %s: %w\nFFprobe Error: %s", inputFile, err, stderr.String())
	}
	return parseDuration(out.Bytes())
}

// Probe copies r to a temporary file and probes it. mp3 durations are
// unreliable when ffprobe reads from a pipe.
func (p *Prober) Probe(ctx context.Context, r io.Reader) (float64, error) {
	if p == nil {
		return 0, ErrProberUnavailable
	}
	tmp, err := os.CreateTemp("", "kgic-probe-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("buffer upload for probing: %w", err)
	}
	return p.ProbeFile(ctx, tmp.Name())
}

func parseDuration(out []byte) (float64, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(out, &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output: %w\nFFprobe Output: %s", err, out)
	}
	if probeData.Format.Duration == "" || probeData.Format.Duration == "N/A" {
		return 0, fmt.Errorf("duration not found in ffprobe output\nFFprobe Output: %s", out)
	}
	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration string %q: %w", probeData.Format.Duration, err)
	}
	return duration, nil
}
