// SPDX-License-Identifier: MPL-2.0

package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/invowk/buildmatrix/internal/config"
	"github.com/invowk/buildmatrix/pkg/matrix"

	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrMissingRunID is returned when a job without a run ID is uploaded.
var ErrMissingRunID = errors.New("job result has no run id")

type (
	// bucketClient is the subset of *minio.Client used for uploads.
	bucketClient interface {
		BucketExists(ctx context.Context, bucket string) (bool, error)
		MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
		PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	}

	// ObjectStore uploads summary.md and summary.json to
	// <Bucket>/<Prefix>/<run-id>/. The bucket is created when missing.
	ObjectStore struct {
		Bucket string
		Prefix string

		client bucketClient
	}
)

// NewObjectStore connects to the S3-compatible endpoint in cfg.
func NewObjectStore(cfg config.ObjectStoreConfig) (*ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: object store bucket is empty", ErrPublish)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %w", ErrPublish, cfg.Endpoint, err)
	}
	return &ObjectStore{Bucket: cfg.Bucket, Prefix: cfg.Prefix, client: client}, nil
}

// Publish implements Reporter.
func (o *ObjectStore) Publish(ctx context.Context, job matrix.JobResult) error {
	if job.RunID == "" {
		return fmt.Errorf("%w: %w", ErrPublish, ErrMissingRunID)
	}
	docs, err := render(job)
	if err != nil {
		return err
	}
	if err := o.ensureBucket(ctx); err != nil {
		return fmt.Errorf("%w: bucket %s: %w", ErrPublish, o.Bucket, err)
	}

	uploads := []struct {
		name        string
		data        []byte
		contentType string
	}{
		{SummaryMarkdown, docs.markdown, "text/markdown; charset=utf-8"},
		{SummaryJSON, docs.json, "application/json"},
	}
	for _, u := range uploads {
		key := o.Key(job.RunID, u.name)
		_, err := o.client.PutObject(ctx, o.Bucket, key, bytes.NewReader(u.data), int64(len(u.data)),
			minio.PutObjectOptions{ContentType: u.contentType})
		if err != nil {
			return fmt.Errorf("%w: upload %s: %w", ErrPublish, key, err)
		}
	}

	log.FromContext(ctx).Info("summary uploaded", "bucket", o.Bucket, "prefix", o.Key(job.RunID, ""))
	return nil
}

// Key returns the object key of name for a run.
func (o *ObjectStore) Key(runID, name string) string {
	return path.Join(o.Prefix, runID, name)
}

func (o *ObjectStore) ensureBucket(ctx context.Context) error {
	exists, err := o.client.BucketExists(ctx, o.Bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return o.client.MakeBucket(ctx, o.Bucket, minio.MakeBucketOptions{})
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
