package s3util

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePut struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePut) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

type fakePresign struct {
	expires time.Duration
}

func (f *fakePresign) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := s3.PresignOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://example.test/" + *in.Bucket + "/" + *in.Key}, nil
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "a.pptx", "a.pptx"},
		{"decks", "a.pptx", "decks/a.pptx"},
		{"/decks/2026/", "a.pptx", "decks/2026/a.pptx"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.name); got != tt.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestUploadBytes(t *testing.T) {
	f := &fakePut{}
	if err := UploadBytes(context.Background(), f, "bucket", "decks/a.pptx", []byte("pptx"), "application/test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *f.input.Key != "decks/a.pptx" || *f.input.ContentType != "application/test" {
		t.Errorf("unexpected input: key=%s type=%s", *f.input.Key, *f.input.ContentType)
	}
	if string(f.body) != "pptx" {
		t.Errorf("unexpected body %q", f.body)
	}
}

func TestUploadBytesWrapsError(t *testing.T) {
	sentinel := errors.New("denied")
	err := UploadBytes(context.Background(), &fakePut{err: sentinel}, "b", "k", nil, "x")
	if !errors.Is(err, sentinel) {
		t.Errorf("expected wrapped sentinel, got %v", err)
	}
}

func TestGeneratePresignedURL(t *testing.T) {
	f := &fakePresign{}
	url, err := GeneratePresignedURL(context.Background(), f, "bucket", "k.pptx", 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://example.test/bucket/k.pptx" {
		t.Errorf("unexpected url %q", url)
	}
	if f.expires != 15*time.Minute {
		t.Errorf("expected expiry to be forwarded, got %v", f.expires)
	}
}
