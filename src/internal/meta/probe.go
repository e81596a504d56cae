package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os/exec"
	"strconv"

	"github.com/pkg/errors"
)

// probeResult contains the part of the probe output that is of interest:
// container duration and overall bitrate
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Probe runs the probe binary on the file at path and returns its duration
// in seconds and its bitrate in kbit/s
func Probe(ctx context.Context, probePath, path string) (duration, bitrate int, err error) {
	cmd := exec.CommandContext(ctx, probePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		err = errors.Wrapf(err, "probe of '%s' failed: %s", path, stderr.String())
		return
	}

	var res probeResult
	if err = json.Unmarshal(out, &res); err != nil {
		err = errors.Wrapf(err, "probe of '%s' returned invalid JSON", path)
		return
	}

	if res.Format.Duration != "" {
		if d, perr := strconv.ParseFloat(res.Format.Duration, 64); perr == nil {
			duration = int(math.Round(d))
		}
	}
	if res.Format.BitRate != "" {
		if b, perr := strconv.ParseInt(res.Format.BitRate, 10, 64); perr == nil {
			bitrate = int(b / 1000)
		}
	}

	return
}
