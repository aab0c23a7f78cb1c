// Package storage keeps profile images in S3-compatible object storage or a
// local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrInvalidName = errors.New("invalid image name")

// ImageStore saves and loads images by flat file name. Get returns
// common.ErrImageNotFound for a missing image.
type ImageStore interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Get(ctx context.Context, name string) ([]byte, error)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
