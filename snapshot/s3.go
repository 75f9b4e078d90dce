package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/SharedCode/treestore"
)

const uploadPartSize = 10 * 1024 * 1024

// S3Sink uploads documents into a bucket. Documents above the part size go up as
// multipart uploads.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// Connect returns an S3 client for config; a custom endpoint (e.g. minio) is used
// when HostEndpointURL is set.
func Connect(config treestore.S3Config) *s3.Client {
	return s3.NewFromConfig(aws.Config{Region: config.Region}, func(o *s3.Options) {
		if config.HostEndpointURL != "" {
			o.BaseEndpoint = aws.String(config.HostEndpointURL)
			o.UsePathStyle = true
		}
		if config.AccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(config.AccessKey, config.SecretKey, "")
		}
	})
}

// NewS3Sink returns a sink writing to config.Bucket under config.Prefix.
func NewS3Sink(config treestore.S3Config) (*S3Sink, error) {
	if config.Bucket == "" {
		return nil, fmt.Errorf("s3 export requires a bucket")
	}
	return &S3Sink{client: Connect(config), bucket: config.Bucket, prefix: config.Prefix}, nil
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Sink) Write(ctx context.Context, name string, body []byte) (string, error) {
	key := s.key(name)
	uploader := manager.NewUploader(s.client, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("couldn't upload %s to bucket %s, details: %w", key, s.bucket, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}
