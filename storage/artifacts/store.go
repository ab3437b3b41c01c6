// Package artifacts stores export files on the local filesystem or in an S3 bucket.
package artifacts

import (
	"context"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/export"
)

// DownloadPath is the API route artifacts are served from.
const DownloadPath = "/v1/exports/"

var (
	// errors
	ErrNotFound        = errors.New("artifact not found")
	ErrInvalidFilename = errors.New("invalid artifact filename")
)

// New returns the store selected by the exports backend.
func New(ctx context.Context, conf *core.Config) (export.ArtifactStore, error) {
	switch conf.Exports.Backend {
	case "s3":
		return NewS3Store(ctx, conf)
	case "fs", "":
		return NewFSStore(conf.Exports.Dir)
	}
	return nil, errors.Errorf("unknown exports backend %q", conf.Exports.Backend)
}

// CheckFilename rejects anything that is not a plain file name.
func CheckFilename(name string) error {
	if name == "" || name != path.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return errors.Wrapf(ErrInvalidFilename, "%q", name)
	}
	return nil
}
