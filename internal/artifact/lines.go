package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/autokuro/internal/checkpoint"
)

// maxLineSize bounds a single line read from an artifact. Crawlers emit long
// URLs, so this is far above bufio's default.
const maxLineSize = 1 << 20

// ReadLines returns the trimmed, non-empty lines of path.
// A missing file yields no lines and no error.
func ReadLines(path string) ([]string, error) {
	var lines []string
	err := eachLine(path, func(line string) {
		lines = append(lines, line)
	})
	return lines, err
}

// eachLine calls fn for every trimmed, non-empty line of path.
func eachLine(path string, fn func(string)) error {
	f, err := os.Open(path) //nolint:gosec // artifact paths are built from the run directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()

	return scanLines(f, fn)
}

func scanLines(r io.Reader, fn func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fn(line)
	}
	return sc.Err()
}

// CountLines returns the number of non-empty lines in path.
func CountLines(path string) (int, error) {
	n := 0
	err := eachLine(path, func(string) { n++ })
	return n, err
}

// WriteLines atomically replaces path with lines, one per line.
func WriteLines(path string, lines []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary artifact: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName) // no-op after a successful rename
	}()

	w := bufio.NewWriter(tmp)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write artifact: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Chmod(filePermission); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set artifact permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to publish artifact: %w", err)
	}
	return nil
}

// FilterLines writes to out every line of in containing token as a plain
// substring and returns the number of lines written. Like Merge it is
// checkpointed: a complete out is left alone, cached is true and n is the
// number of lines already in it.
func FilterLines(in, out, token string) (n int, cached bool, err error) {
	if checkpoint.ShouldSkip(out) {
		n, err = CountLines(out)
		return n, true, err
	}
	var kept []string
	err = eachLine(in, func(line string) {
		if strings.Contains(line, token) {
			kept = append(kept, line)
		}
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s: %w", in, err)
	}
	if err := WriteLines(out, kept); err != nil {
		return 0, false, err
	}
	return len(kept), false, nil
}

// Hostname reduces a subdomain, host:port or URL entry to a bare,
// lowercase hostname. It returns "" when nothing usable remains.
func Hostname(entry string) string {
	s := strings.TrimSpace(entry)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Host
		}
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if strings.HasPrefix(s, "[") {
		if i := strings.Index(s, "]"); i > 0 {
			s = s[1:i]
		}
	} else if i := strings.LastIndex(s, ":"); i >= 0 && strings.Count(s, ":") == 1 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "*.")
	s = strings.TrimSuffix(s, ".")
	return strings.ToLower(s)
}

// Hostnames normalizes entries with Hostname and removes empties and
// duplicates, keeping first-occurrence order.
func Hostnames(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		h := Hostname(e)
		if h == "" || strings.HasPrefix(h, "-") {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
