package output

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config describes the bucket receiving ARFF uploads.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	UseSSL    bool   `mapstructure:"use-ssl"`
}

type objectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 uploads the ARFF rendering of a result to S3-compatible storage.
type S3 struct {
	client   objectStore
	bucket   string
	prefix   string
	relation string
}

// NewS3 creates an uploader. Static credentials are used when configured,
// the default AWS credential chain otherwise.
func NewS3(ctx context.Context, cfg S3Config, relation string) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := normalizeEndpoint(cfg.Endpoint); endpoint != "" {
			scheme := "http"
			if cfg.UseSSL {
				scheme = "https"
			}
			o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, endpoint))
			o.UsePathStyle = true
		}
	})

	return newS3(client, cfg.Bucket, cfg.Prefix, relation), nil
}

func newS3(client objectStore, bucket, prefix, relation string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix, relation: relation}
}

// Key returns the object key used for a run.
func (s *S3) Key(runID string) string {
	return path.Join(strings.Trim(s.prefix, "/"), runID+".arff")
}

func (s *S3) Emit(ctx context.Context, r Result) error {
	return emitStaged(ctx, s, r)
}

// Prepare renders the object body; nothing is uploaded until Commit.
func (s *S3) Prepare(_ context.Context, r Result) (Pending, error) {
	var buf bytes.Buffer
	if err := WriteARFF(&buf, s.relation, r); err != nil {
		return nil, fmt.Errorf("render arff: %w", err)
	}
	return &s3Pending{s3: s, key: s.Key(r.RunID), body: buf.Bytes()}, nil
}

// Revert deletes the object uploaded for the run.
func (s *S3) Revert(ctx context.Context, r Result) error {
	key := s.Key(r.RunID)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from bucket %s: %w", key, s.bucket, err)
	}
	return nil
}

type s3Pending struct {
	s3   *S3
	key  string
	body []byte
}

func (p *s3Pending) Commit(ctx context.Context) error {
	_, err := p.s3.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.s3.bucket),
		Key:           aws.String(p.key),
		Body:          bytes.NewReader(p.body),
		ContentType:   aws.String("text/plain; charset=utf-8"),
		ContentLength: aws.Int64(int64(len(p.body))),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to bucket %s: %w", p.key, p.s3.bucket, err)
	}
	return nil
}

func (*s3Pending) Discard() error { return nil }

// normalizeEndpoint removes protocol prefix and path from endpoint
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}

	return strings.TrimSuffix(endpoint, "/")
}
