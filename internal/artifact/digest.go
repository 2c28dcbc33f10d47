package artifact

import (
	"encoding/hex"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/sha3"
)

// Fingerprint returns the hex SHA3-256 digest of the file at path, or ""
// when the file does not exist. The digest is recorded in run history for
// comparison between runs; it plays no part in checkpoint decisions.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // artifact paths are built from the run directory
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	h := sha3.New256()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
