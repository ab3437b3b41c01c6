package artifacts

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"

	"github.com/quizmaster/backend/core"
	"github.com/quizmaster/backend/core/export"
)

const (
	keyPrefix         = "exports/"
	csvContentType    = "text/csv; charset=utf-8"
	defaultURLExpires = 15 * time.Minute
)

type (
	objectAPI interface {
		PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
		GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	}

	presigner interface {
		PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	}

	// S3Store keeps artifacts under the "exports/" prefix of a bucket; download URLs are presigned GETs.
	S3Store struct {
		bucket  string
		expires time.Duration
		api     objectAPI
		presign presigner
	}
)

var _ export.ArtifactStore = (*S3Store)(nil)

func NewS3Store(ctx context.Context, conf *core.Config) (*S3Store, error) {
	ec := conf.Exports
	opts := []func(*config.LoadOptions) error{config.WithRegion(ec.S3Region)}
	if ec.S3AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ec.S3AccessKey, ec.S3SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if ec.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(ec.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(ec.S3Bucket, ec.PresignExpiry, client, s3.NewPresignClient(client)), nil
}

func newS3Store(bucket string, expires time.Duration, api objectAPI, presign presigner) *S3Store {
	if expires <= 0 {
		expires = defaultURLExpires
	}
	return &S3Store{bucket: bucket, expires: expires, api: api, presign: presign}
}

func (s *S3Store) key(filename string) string {
	return keyPrefix + filename
}

// Put uploads the whole object in one request; S3 never exposes a partially written object.
func (s *S3Store) Put(ctx context.Context, filename string, content []byte) (string, error) {
	if err := CheckFilename(filename); err != nil {
		return "", err
	}
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(filename)),
		Body:          bytes.NewReader(content),
		ContentType:   aws.String(csvContentType),
		ContentLength: aws.Int64(int64(len(content))),
	})
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", filename)
	}
	return "s3://" + s.bucket + "/" + s.key(filename), nil
}

func (s *S3Store) Open(ctx context.Context, filename string) (io.ReadCloser, error) {
	if err := CheckFilename(filename); err != nil {
		return nil, err
	}
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(filename)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errors.Wrapf(ErrNotFound, "%s", filename)
		}
		return nil, errors.Wrapf(err, "downloading %s", filename)
	}
	return out.Body, nil
}

func (s *S3Store) URL(ctx context.Context, filename string) (string, error) {
	if err := CheckFilename(filename); err != nil {
		return "", err
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(filename)),
	}, s3.WithPresignExpires(s.expires))
	if err != nil {
		return "", errors.Wrapf(err, "presigning %s", filename)
	}
	return req.URL, nil
}
