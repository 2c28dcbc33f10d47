package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Canonical artifact basenames. They must stay stable so that a run can
// resume from a directory written by an earlier invocation.
const (
	Subdomains     = "subdomains"
	PortTargets    = "port_targets"
	OpenPorts      = "open_ports"
	TargetSeed     = "target_seed"
	LiveHosts      = "live_hosts"
	Takeover       = "takeover_results"
	CloudEnum      = "cloud_enum_results"
	HiddenDirs     = "hidden_dirs"
	ArchiveURLs    = "archive_urls"
	ActiveCrawl    = "active_crawl"
	AllURLsClean   = "all_urls_clean"
	Parameters     = "parameters"
	JSFiles        = "js_files"
	NucleiSecrets  = "nuclei_report_secrets"
	NucleiReport   = "nuclei_report"
	DalfoxXSS      = "dalfox_xss"
	SecretsLeak    = "secrets_leak"
	Extension      = ".txt"
	dateLayout     = "2006-01-02"
	dirPermission  = 0750
	filePermission = 0600
)

// ErrInvalidTarget is returned when a target cannot be used as a directory name.
var ErrInvalidTarget = errors.New("target cannot be used as a directory name")

// RunContext is the working directory of one (target, date) run.
// The core creates it once and never deletes it.
type RunContext struct {
	// Dir is the absolute or relative directory path.
	Dir string

	// Target is the scanned domain.
	Target string

	// Date is the run date the directory is keyed by.
	Date time.Time
}

// NewRunContext creates (or reopens) <root>/<target>/<date>.
func NewRunContext(root, target string, date time.Time) (*RunContext, error) {
	if target == "" || target == "." || target == ".." || filepath.Base(target) != target {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	dir := filepath.Join(root, target, date.Format(dateLayout))
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &RunContext{Dir: dir, Target: target, Date: date}, nil
}

// Path returns the file path of the artifact with the given basename.
func (rc *RunContext) Path(name string) string {
	return filepath.Join(rc.Dir, name+Extension)
}

// Size returns the total size in bytes of regular files under the run
// directory. Errors are ignored; the value is for progress display only.
func (rc *RunContext) Size() int64 {
	var total int64
	_ = filepath.WalkDir(rc.Dir, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
