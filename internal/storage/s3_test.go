package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newS3Store(fake, "books", "https://cdn.example/")

	url, err := store.Upload(ctx, "works/w1/page-2.png", []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example/works/w1/page-2.png" {
		t.Fatalf("url = %q", url)
	}
	if fake.types["books/works/w1/page-2.png"] != "image/png" {
		t.Fatalf("content type not forwarded: %v", fake.types)
	}

	data, err := store.Read(ctx, url)
	if err != nil || string(data) != "img" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	if err := store.Delete(ctx, url); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fake.objects) != 0 {
		t.Fatalf("object not deleted: %v", fake.objects)
	}
}

func TestS3StoreRejectsForeignURLs(t *testing.T) {
	store := newS3Store(newFakeS3(), "books", "https://cdn.example")
	if store.Owns("https://cdn.example.evil/x.png") {
		t.Fatal("prefix match must respect the path separator")
	}
	if err := store.Delete(context.Background(), "https://other/x.png"); !errors.Is(err, ErrForeignURL) {
		t.Fatalf("expected ErrForeignURL, got %v", err)
	}
}

func TestS3StoreUploadError(t *testing.T) {
	fake := newFakeS3()
	fake.err = errors.New("access denied")
	store := newS3Store(fake, "books", "https://cdn.example")
	if _, err := store.Upload(context.Background(), "k.png", []byte("x"), "image/png"); err == nil {
		t.Fatal("expected upload error")
	}
}
