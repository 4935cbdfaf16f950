// Copyright (C) 2024 Storj Labs, Inc.
// See LICENSE for copying information.

package notices

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
)

// Attachments removes notice attachment objects.
type Attachments interface {
	Delete(ctx context.Context, ref string) error
}

// BucketAttachments stores attachments in a Cloud Storage bucket.
type BucketAttachments struct {
	bucket *storage.BucketHandle
}

// NewBucketAttachments creates attachments backed by bucket.
func NewBucketAttachments(bucket *storage.BucketHandle) *BucketAttachments {
	return &BucketAttachments{bucket: bucket}
}

// Delete removes the object ref points to. A missing object is not an error.
func (attachments *BucketAttachments) Delete(ctx context.Context, ref string) (err error) {
	defer mon.Task()(&ctx)(&err)

	path, err := ObjectPath(ref)
	if err != nil {
		return err
	}
	err = attachments.bucket.Object(path).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	return Error.Wrap(err)
}

// ObjectPath returns the object path of an attachment reference, which is a
// plain object path, a gs:// URL or a Firebase download URL.
func ObjectPath(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return "", Error.New("empty attachment reference")
	case strings.HasPrefix(ref, "gs://"):
		rest := strings.TrimPrefix(ref, "gs://")
		slash := strings.IndexByte(rest, '/')
		if slash < 0 || slash == len(rest)-1 {
			return "", Error.New("attachment %q has no object path", ref)
		}
		return rest[slash+1:], nil
	case strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", Error.Wrap(err)
		}
		// download URLs look like /v0/b/{bucket}/o/{escaped path}
		_, escaped, ok := strings.Cut(u.EscapedPath(), "/o/")
		if !ok || escaped == "" {
			return "", Error.New("attachment %q is not a storage download URL", ref)
		}
		path, err := url.PathUnescape(escaped)
		if err != nil {
			return "", Error.Wrap(err)
		}
		return path, nil
	}
	return strings.TrimPrefix(ref, "/"), nil
}
