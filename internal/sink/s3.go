package sink

import (
	"bytes"
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/model"
)

// objectPutter is the subset of *minio.Client the sink uses.
type objectPutter interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Options configures an S3-compatible endpoint.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
	Prefix    string
}

// S3Sink uploads the JSON batch to an S3-compatible bucket, one object per
// run.
type S3Sink struct {
	client objectPutter
	bucket string
	prefix string
}

// NewS3Sink connects to the endpoint in opts.
func NewS3Sink(opts S3Options) (*S3Sink, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "sink: create s3 client for %s", opts.Endpoint)
	}
	return &S3Sink{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// Name implements Sink.
func (s *S3Sink) Name() string { return "s3:" + s.bucket }

// Key returns the object key for a run.
func (s *S3Sink) Key(runID string) string {
	return path.Join(s.prefix, runID+".json")
}

// Write implements Sink.
func (s *S3Sink) Write(ctx context.Context, runID string, batch *model.EnrichedBatch) error {
	data, err := EncodeJSON(batch.Results)
	if err != nil {
		return err
	}
	key := s.Key(runID)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return eris.Wrapf(err, "sink: put s3://%s/%s", s.bucket, key)
	}
	return nil
}
