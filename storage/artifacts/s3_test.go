package artifacts

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct {
	objects map[string]string
	putErr  error
}

func (b *fakeBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.objects[*in.Bucket+"/"+*in.Key] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (b *fakeBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := b.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

type fakePresigner struct {
	expires time.Duration
}

func (p *fakePresigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	p.expires = opts.Expires
	return &v4.PresignedHTTPRequest{
		URL:    "https://" + *in.Bucket + ".s3.test/" + *in.Key + "?X-Amz-Signature=abc",
		Method: "GET",
	}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	bucket := &fakeBucket{objects: map[string]string{}}
	presign := &fakePresigner{}
	store := newS3Store("quizmaster", 0, bucket, presign)

	loc, err := store.Put(ctx, "quizzes.csv", []byte("id,title\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3://quizmaster/exports/quizzes.csv", loc)
	assert.Equal(t, "id,title\n", bucket.objects["quizmaster/exports/quizzes.csv"])

	rc, err := store.Open(ctx, "quizzes.csv")
	require.NoError(t, err)
	content, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "id,title\n", string(content))

	_, err = store.Open(ctx, "missing.csv")
	assert.Equal(t, ErrNotFound, errors.Cause(err))

	url, err := store.URL(ctx, "quizzes.csv")
	require.NoError(t, err)
	assert.Equal(t, "https://quizmaster.s3.test/exports/quizzes.csv?X-Amz-Signature=abc", url)
	assert.Equal(t, defaultURLExpires, presign.expires)

	bucket.putErr = errors.New("access denied")
	_, err = store.Put(ctx, "users.csv", []byte("x"))
	assert.EqualError(t, err, "uploading users.csv: access denied")

	_, err = store.URL(ctx, "../users.csv")
	assert.Equal(t, ErrInvalidFilename, errors.Cause(err))
}
