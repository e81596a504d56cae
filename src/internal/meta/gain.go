package meta

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
)

// GainAnalyzer computes missing ReplayGain values by running the encoder
// binary with its replaygain filter. The number of concurrently running
// analyses is bounded by a semaphore
type GainAnalyzer struct {
	ffmpegPath string
	sema       chan struct{}
}

// NewGainAnalyzer creates a gain analyzer that runs at most maxConcurrent
// analyzer processes at any time
func NewGainAnalyzer(ffmpegPath string, maxConcurrent int) *GainAnalyzer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &GainAnalyzer{
		ffmpegPath: ffmpegPath,
		sema:       make(chan struct{}, maxConcurrent),
	}
}

// Analyze determines track gain and peak of the audio file at path. It
// blocks while the maximum number of analyses is running and returns early
// if ctx is cancelled while waiting
func (me *GainAnalyzer) Analyze(ctx context.Context, path string) (gain, peak float64, err error) {
	select {
	case me.sema <- struct{}{}:
		defer func() { <-me.sema }()
	case <-ctx.Done():
		err = ctx.Err()
		return
	}

	cmd := exec.CommandContext(ctx, me.ffmpegPath,
		"-hide_banner",
		"-nostats",
		"-i", path,
		"-vn",
		"-af", "replaygain",
		"-f", "null", "-",
	)

	// the replaygain filter reports its result on stderr
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		err = errors.Wrapf(err, "gain analysis of '%s' failed", path)
		return
	}

	return parseGainOutput(&stderr, path)
}

// parseGainOutput extracts "track_gain = -8.50 dB" and "track_peak =
// 0.912345" lines from the analyzer output
func parseGainOutput(out *bytes.Buffer, path string) (gain, peak float64, err error) {
	var haveGain, havePeak bool

	scanner := bufio.NewScanner(out)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch {
		case strings.HasSuffix(key, "track_gain"):
			if gain, err = ParseGain(value); err == nil {
				haveGain = true
			}
		case strings.HasSuffix(key, "track_peak"):
			if peak, err = ParsePeak(value); err == nil {
				havePeak = true
			}
		}
	}

	if !haveGain || !havePeak {
		err = errors.Errorf("gain analysis of '%s' produced no result", path)
		return
	}
	err = nil
	return
}
