// Package storage implements the on-disk object store: append-only writes under
// <UPLOAD_DIR>/file-<uuid>.<ext>, and a multi-path search with Docker host-path
// remapping for reads, grounded on the source's process_attachments_for_vectorization
// upload-directory search list and /Users/ prefix remapping.
package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/polaris/gateway/internal/domain/gateway"
)

// searchDirectories is the fixed fallback search order for locating a stored file by
// name when it is not at the primary upload directory.
var searchDirectories = []string{
	"/app/uploads",
	"/tmp/uploads",
	"/var/tmp/uploads",
	"/usr/src/app/uploads",
	homeUploads(),
	"./uploads",
}

func homeUploads() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "uploads")
}

// dockerRemapPrefixes are tried in order when an address looks like a host-style
// "/Users/..." path that needs remapping into a container filesystem.
var dockerRemapPrefixes = []string{"/app", "/usr/src/app", "/tmp"}

// Local is a filesystem-backed ObjectStore. Writes always go to UploadDir; reads search
// UploadDir first, then searchDirectories, then Docker-remapped variants of the
// original address.
type Local struct {
	uploadDir string
}

// New constructs a Local object store rooted at uploadDir, creating it if absent.
func New(uploadDir string) (*Local, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, err
	}
	return &Local{uploadDir: uploadDir}, nil
}

func (l *Local) Save(ctx context.Context, storedName string, r io.Reader, size int64) error {
	path := filepath.Join(l.uploadDir, storedName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (l *Local) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	path, ok := l.Locate(storedName)
	if !ok {
		return nil, os.ErrNotExist
	}
	return os.Open(path)
}

// Locate resolves storedName (typically a File.Address) to a filesystem path,
// searching, in order: the address itself if it is already a full path, the primary
// upload directory, the fixed search-directory list, and finally Docker host-path
// remappings of the address.
func (l *Local) Locate(storedName string) (string, bool) {
	if storedName == "" || storedName == gateway.AddressDeleted {
		return "", false
	}

	if fileExists(storedName) {
		return storedName, true
	}

	primary := filepath.Join(l.uploadDir, storedName)
	if fileExists(primary) {
		return primary, true
	}

	for _, dir := range searchDirectories {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, storedName)
		if fileExists(candidate) {
			return candidate, true
		}
	}

	if strings.HasPrefix(storedName, "/Users/") {
		for _, prefix := range dockerRemapPrefixes {
			remapped := strings.Replace(storedName, "/Users", prefix, 1)
			if fileExists(remapped) {
				return remapped, true
			}
		}
	}

	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var _ gateway.ObjectStore = (*Local)(nil)
