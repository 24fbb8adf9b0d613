package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockObjectAPI struct {
	GetObjectFunc func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error)
}

func (m *mockObjectAPI) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return m.GetObjectFunc(ctx, params)
}

var _ ObjectAPI = (*mockObjectAPI)(nil)

func TestFetchRawMessage(t *testing.T) {
	var bucket, key string
	api := &mockObjectAPI{
		GetObjectFunc: func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			bucket = aws.ToString(params.Bucket)
			key = aws.ToString(params.Key)
			return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader("raw mime"))}, nil
		},
	}

	f := NewFetcherWithAPI(api, "inbound-bucket", "inbound/")
	data, err := f.FetchRawMessage(context.Background(), "msg-1")
	if err != nil {
		t.Fatalf("FetchRawMessage() error = %v", err)
	}
	if string(data) != "raw mime" {
		t.Errorf("data = %s", data)
	}
	if bucket != "inbound-bucket" || key != "inbound/msg-1" {
		t.Errorf("bucket/key = %s/%s", bucket, key)
	}
}

func TestFetchRawMessageErrors(t *testing.T) {
	api := &mockObjectAPI{
		GetObjectFunc: func(ctx context.Context, params *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
			return nil, errors.New("no such key")
		},
	}

	if _, err := NewFetcherWithAPI(api, "b", "").FetchRawMessage(context.Background(), "m"); err == nil {
		t.Error("FetchRawMessage() expected error")
	}

	disabled := NewFetcherWithAPI(api, "", "")
	if disabled.Enabled() {
		t.Error("Enabled() = true without bucket")
	}
	if _, err := disabled.FetchRawMessage(context.Background(), "m"); err == nil {
		t.Error("FetchRawMessage() expected error without bucket")
	}
}
