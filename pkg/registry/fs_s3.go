package registry

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"k8s.io/utils/pointer"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/storage"
)

var _ FSProvider = &S3StorageProvider{}

type S3StorageProvider struct {
	Bucket string
	Client *s3.Client
	Prefix string
}

// NewS3FSProvider stores registry objects under prefix in bucket, sharing the
// connection settings of cli.
func NewS3FSProvider(cli *storage.Client, bucket, prefix string) *S3StorageProvider {
	return &S3StorageProvider{
		Bucket: bucket,
		Client: cli.S3,
		Prefix: prefix,
	}
}

func (m *S3StorageProvider) Put(ctx context.Context, path string, content BlobContent) error {
	uploadobj := &s3.PutObjectInput{
		Bucket:        aws.String(m.Bucket),
		Key:           m.prefixedKey(path),
		Body:          content.Content,
		ContentLength: content.ContentLength,
		ContentType:   aws.String(content.ContentType),
	}
	if _, err := manager.NewUploader(m.Client).Upload(ctx, uploadobj); err != nil {
		return err
	}
	return nil
}

func (m *S3StorageProvider) Get(ctx context.Context, path string) (BlobContent, error) {
	getobjout, err := m.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    m.prefixedKey(path),
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return BlobContent{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return BlobContent{}, err
	}
	return BlobContent{
		Content:       getobjout.Body,
		ContentType:   pointer.StringDeref(getobjout.ContentType, ""),
		ContentLength: getobjout.ContentLength,
	}, nil
}

func (m *S3StorageProvider) Exists(ctx context.Context, path string) (bool, error) {
	_, err := m.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.Bucket),
		Key:    m.prefixedKey(path),
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *S3StorageProvider) List(ctx context.Context, path string, recursive bool) ([]FsObjectMeta, error) {
	prefix := *m.prefixedKey(path)
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	listinput := &s3.ListObjectsInput{
		Bucket: aws.String(m.Bucket),
		Prefix: aws.String(prefix),
	}
	if !recursive {
		listinput.Delimiter = aws.String("/")
	}
	var result []FsObjectMeta
	for {
		listobjout, err := m.Client.ListObjects(ctx, listinput)
		if err != nil {
			return nil, err
		}
		for _, obj := range listobjout.Contents {
			result = append(result, FsObjectMeta{
				Name:         strings.TrimPrefix(pointer.StringDeref(obj.Key, ""), prefix),
				Size:         obj.Size,
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !listobjout.IsTruncated {
			break
		}
		listinput.Marker = listobjout.NextMarker
		if listinput.Marker == nil && len(listobjout.Contents) > 0 {
			listinput.Marker = listobjout.Contents[len(listobjout.Contents)-1].Key
		}
	}
	return result, nil
}

func (m *S3StorageProvider) prefixedKey(key string) *string {
	return aws.String(path.Join(m.Prefix, key))
}
