package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxObjectSize caps how much of a stored message is read
const maxObjectSize = 10 << 20

// ObjectAPI is the subset of the S3 API the fetcher uses
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ ObjectAPI = (*s3.Client)(nil)

// Fetcher reads raw inbound messages that SES stored in a bucket
type Fetcher struct {
	client ObjectAPI
	bucket string
	prefix string
}

// NewFetcher creates a fetcher from AWS config
func NewFetcher(cfg aws.Config, bucket, prefix string) *Fetcher {
	return NewFetcherWithAPI(s3.NewFromConfig(cfg), bucket, prefix)
}

// NewFetcherWithAPI creates a fetcher over an existing API implementation
func NewFetcherWithAPI(api ObjectAPI, bucket, prefix string) *Fetcher {
	return &Fetcher{client: api, bucket: bucket, prefix: prefix}
}

// Enabled reports whether a bucket is configured
func (f *Fetcher) Enabled() bool {
	return f != nil && f.bucket != ""
}

// ObjectKey returns the key SES writes a message to: the action's object
// key prefix followed by the message id.
func (f *Fetcher) ObjectKey(messageID string) string {
	return f.prefix + messageID
}

// FetchRawMessage returns the raw MIME message stored for messageID
func (f *Fetcher) FetchRawMessage(ctx context.Context, messageID string) ([]byte, error) {
	if !f.Enabled() {
		return nil, fmt.Errorf("fetch raw message: no bucket configured")
	}

	key := f.ObjectKey(messageID)
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxObjectSize))
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}
