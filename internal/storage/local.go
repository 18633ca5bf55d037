package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidPath = errors.New("invalid storage path")

// Local stores uploads on disk as <root>/<userID>/<uuid><ext>
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Root() string { return l.root }

// Save writes r under the user's directory and returns the path relative to
// the root. The original file name only contributes its extension.
func (l *Local) Save(userID uuid.UUID, fileName string, r io.Reader) (string, int64, error) {
	dir := filepath.Join(l.root, userID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("creating user upload dir: %w", err)
	}

	rel := filepath.ToSlash(filepath.Join(userID.String(), uuid.New().String()+safeExt(fileName)))
	full := filepath.Join(l.root, filepath.FromSlash(rel))

	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("creating upload file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(full)
		return "", 0, fmt.Errorf("writing upload file: %w", err)
	}
	return rel, n, nil
}

func (l *Local) Open(rel string) (*os.File, error) {
	full, err := l.resolve(rel)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Remove deletes a stored file; a file that is already gone is not an error
func (l *Local) Remove(rel string) error {
	if rel == "" {
		return nil
	}
	full, err := l.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing upload file: %w", err)
	}
	return nil
}

func (l *Local) resolve(rel string) (string, error) {
	full := filepath.Join(l.root, filepath.FromSlash(rel))
	if !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return full, nil
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 || strings.ContainsAny(ext, `/\ `) {
		return ""
	}
	return ext
}
