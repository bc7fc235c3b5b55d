package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sourcegraph/conc/pool"
)

// ObjectPutter is the part of the S3 client the uploader uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config selects the destination bucket.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
	// Endpoint overrides the S3 endpoint, e.g. for MinIO. Path style
	// addressing is used when it is set.
	Endpoint string
	Workers  int
}

// S3Uploader uploads project trees to s3://<bucket>/<prefix>/<project>/...
type S3Uploader struct {
	client  ObjectPutter
	bucket  string
	prefix  string
	workers int
	logger  *slog.Logger
}

// NewS3Uploader loads the default AWS credential chain and returns an
// uploader for cfg.
func NewS3Uploader(ctx context.Context, cfg S3Config, logger *slog.Logger) (*S3Uploader, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3UploaderWithClient(client, cfg, logger), nil
}

// NewS3UploaderWithClient returns an uploader using client.
func NewS3UploaderWithClient(client ObjectPutter, cfg S3Config, logger *slog.Logger) *S3Uploader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 4
	}
	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		workers: workers,
		logger:  logger,
	}
}

// Upload puts every regular file below dir. The first failed object cancels
// the remaining uploads of this tree.
func (u *S3Uploader) Upload(ctx context.Context, projectKey, dir string) (Stats, error) {
	objs, err := walkTree(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("walking %s: %w", dir, err)
	}

	var (
		count atomic.Int64
		bytes atomic.Int64
	)
	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(u.workers)
	for _, obj := range objs {
		p.Go(func(ctx context.Context) error {
			key := joinKey(u.prefix, projectKey, obj.Key)
			if err := u.put(ctx, key, obj); err != nil {
				return err
			}
			count.Add(1)
			bytes.Add(obj.Size)
			return nil
		})
	}
	err = p.Wait()

	st := Stats{Objects: int(count.Load()), Bytes: bytes.Load()}
	if err != nil {
		return st, err
	}
	u.logger.Info("uploaded project", "project", projectKey, "bucket", u.bucket, "objects", st.Objects)
	return st, nil
}

func (u *S3Uploader) put(ctx context.Context, key string, obj object) error {
	f, err := os.Open(obj.Local)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(obj.Size),
	})
	if err != nil {
		return fmt.Errorf("failed to write s3://%s/%s: %w", u.bucket, key, err)
	}
	u.logger.Debug("uploaded object", "key", key, "bytes", obj.Size)
	return nil
}
