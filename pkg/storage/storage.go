// Package storage talks to the S3 compatible object store (MinIO) that backs
// both the dvc remote and the model registry.
package storage

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/transport/http"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

const DefaultRegion = "us-east-1"

type Options struct {
	URL       string `json:"url,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	PathStyle bool   `json:"pathStyle,omitempty"`
}

func NewDefaultOptions() *Options {
	return &Options{
		URL:       "http://localhost:9000",
		Region:    DefaultRegion,
		PathStyle: true,
	}
}

// BucketClient is the part of the object store the environment setup needs.
type BucketClient interface {
	BucketExists(ctx context.Context, name string) (bool, error)
	MakeBucket(ctx context.Context, name string) error
}

var _ BucketClient = &Client{}

type Client struct {
	URL    string
	Region string
	S3     *s3.Client
}

func NewClient(ctx context.Context, options *Options) (*Client, error) {
	region := options.Region
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(options.AccessKey, options.SecretKey, ""),
		),
		config.WithRegion(region),
		config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(
				func(service, region string, _ ...interface{}) (aws.Endpoint, error) {
					return aws.Endpoint{URL: options.URL}, nil
				},
			),
		),
	)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}
	s3cli := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = options.PathStyle
		// a down endpoint should fail the stage at once
		o.Retryer = aws.NopRetryer{}
	})
	return &Client{URL: options.URL, Region: region, S3: s3cli}, nil
}

func (c *Client) BucketExists(ctx context.Context, name string) (bool, error) {
	_, err := c.S3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, c.classify(err)
}

func (c *Client) MakeBucket(ctx context.Context, name string) error {
	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if c.Region != DefaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(c.Region),
		}
	}
	if _, err := c.S3.CreateBucket(ctx, input); err != nil {
		return c.classify(err)
	}
	return nil
}

// PutObject uploads body to key in bucket.
func (c *Client) PutObject(ctx context.Context, bucket, key string, body io.Reader) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if _, err := manager.NewUploader(c.S3).Upload(ctx, input); err != nil {
		return c.classify(err)
	}
	return nil
}

// classify turns transport level failures into STORAGE_UNAVAILABLE and keeps
// everything else as an internal error.
func (c *Client) classify(err error) error {
	if IsUnavailable(err) {
		return errors.NewStorageUnavailableError(c.URL, err)
	}
	return errors.NewInternalError(err)
}

func IsNotFound(err error) bool {
	var apie *http.ResponseError
	if stderrors.As(err, &apie) {
		return apie.HTTPStatusCode() == 404
	}
	return false
}

// IsUnavailable reports whether err means the endpoint could not be reached at all.
func IsUnavailable(err error) bool {
	var senderr *http.RequestSendError
	if stderrors.As(err, &senderr) {
		return true
	}
	var operr *net.OpError
	if stderrors.As(err, &operr) {
		return true
	}
	var urlerr *url.Error
	return stderrors.As(err, &urlerr)
}
