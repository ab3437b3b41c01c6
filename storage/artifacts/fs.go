package artifacts

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core/export"
)

// FSStore keeps artifacts as files in one directory.
type FSStore struct {
	dir string
}

var _ export.ArtifactStore = (*FSStore)(nil)

func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "creating exports dir %s", dir)
	}
	return &FSStore{dir: dir}, nil
}

// Put writes to a temporary file first so a failed write never leaves a partial artifact.
func (s *FSStore) Put(_ context.Context, filename string, content []byte) (string, error) {
	if err := CheckFilename(filename); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.dir, "."+filename+".*")
	if err != nil {
		return "", errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after rename

	if _, err = tmp.Write(content); err != nil {
		_ = tmp.Close()
		return "", errors.Wrap(err, "writing temp file")
	}
	if err = tmp.Close(); err != nil {
		return "", errors.Wrap(err, "closing temp file")
	}

	dest := filepath.Join(s.dir, filename)
	if err = os.Rename(tmp.Name(), dest); err != nil {
		return "", errors.Wrap(err, "moving artifact in place")
	}
	return dest, nil
}

func (s *FSStore) Open(_ context.Context, filename string) (io.ReadCloser, error) {
	if err := CheckFilename(filename); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, filename))
	if os.IsNotExist(err) {
		return nil, errors.Wrapf(ErrNotFound, "%s", filename)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", filename)
	}
	return f, nil
}

func (s *FSStore) URL(_ context.Context, filename string) (string, error) {
	if err := CheckFilename(filename); err != nil {
		return "", err
	}
	return DownloadPath + filename, nil
}
