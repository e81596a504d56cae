package playlist

import (
	"regexp"
	"runtime"
	"strings"
)

// lyrics lines are joined with the platform line separator
var lineSeparator = "\n"

func init() {
	if runtime.GOOS == "windows" {
		lineSeparator = "\r\n"
	}
}

// LRC line shapes: metadata lines like "[ar: artist]" are dropped, timestamp
// lines like "[00:05.20]text" keep only the text
var (
	lrcMetaRe = regexp.MustCompile(`^\s*\[[a-zA-Z]+:[^\]]*\]\s*$`)
	lrcTimeRe = regexp.MustCompile(`^\s*(?:\[\d{1,2}:\d{2}(?:\.\d{1,3})?\])+(.*)$`)
)

// ParseLRC extracts the plain lyrics text from an LRC document: timestamp
// tags are stripped, metadata lines and blank lines are dropped, anything
// else passes through
func ParseLRC(s string) string {
	var lines []string

	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if lrcMetaRe.MatchString(line) {
			continue
		}
		if m := lrcTimeRe.FindStringSubmatch(line); m != nil {
			if text := strings.TrimSpace(m[1]); text != "" {
				lines = append(lines, text)
			}
			continue
		}
		lines = append(lines, line)
	}

	return strings.Join(lines, lineSeparator)
}
