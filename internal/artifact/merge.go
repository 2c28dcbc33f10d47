package artifact

import (
	"fmt"
	"strings"

	"github.com/nao1215/autokuro/internal/checkpoint"
)

// noiseMarkers are substrings that mark a crawled line as junk: error pages,
// CDN plumbing, logout links and static assets.
var noiseMarkers = []string{
	"sg_error.php",
	"404",
	"error.php",
	"cdn-cgi",
	"logout",
	"jquery",
	".css",
	".png",
	".jpg",
	".svg",
	".gif",
	".woff",
}

// NoiseMarkers returns a copy of the substrings Merge filters out.
func NoiseMarkers() []string {
	out := make([]string, len(noiseMarkers))
	copy(out, noiseMarkers)
	return out
}

// IsNoise reports whether line contains any noise marker.
func IsNoise(line string) bool {
	for _, m := range noiseMarkers {
		if strings.Contains(line, m) {
			return true
		}
	}
	return false
}

// Merge unions the line-based artifacts at paths into output.
//
// If output is already complete it is returned unchanged, which makes Merge
// idempotent across resumed runs. Otherwise every existing input is read;
// lines are trimmed, empty and noise lines dropped, and exact duplicates
// collapsed. Lines are written in first-occurrence order, though consumers
// must not rely on any particular order. Missing inputs are skipped.
func Merge(paths []string, output string) (string, error) {
	if checkpoint.ShouldSkip(output) {
		return output, nil
	}

	seen := make(map[string]struct{})
	var merged []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := eachLine(p, func(line string) {
			if IsNoise(line) {
				return
			}
			if _, ok := seen[line]; ok {
				return
			}
			seen[line] = struct{}{}
			merged = append(merged, line)
		})
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", p, err)
		}
	}

	if err := WriteLines(output, merged); err != nil {
		return "", err
	}
	return output, nil
}
