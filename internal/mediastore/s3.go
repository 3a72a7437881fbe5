package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var errMissingBucket = errors.New("mediastore.s3.missing_bucket")

// S3Config points the store at a bucket. BaseEndpoint is optional and covers
// MinIO-style deployments; PublicBaseURL is the prefix returned URLs use.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	BaseEndpoint    string
	PublicBaseURL   string
}

// S3Store uploads media to an S3-compatible bucket.
type S3Store struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
}

// NewS3Store builds the S3 client from static credentials.
func NewS3Store(ctx context.Context, configuration S3Config) (*S3Store, error) {
	if strings.TrimSpace(configuration.Bucket) == "" {
		return nil, fmt.Errorf("mediastore.s3.new: %w", errMissingBucket)
	}
	awsConfiguration, loadErr := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(configuration.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			configuration.AccessKeyID,
			configuration.SecretAccessKey,
			"",
		)))
	if loadErr != nil {
		return nil, fmt.Errorf("mediastore.s3.new: %w", loadErr)
	}
	client := s3.NewFromConfig(awsConfiguration, func(options *s3.Options) {
		if configuration.BaseEndpoint != "" {
			options.BaseEndpoint = aws.String(configuration.BaseEndpoint)
			options.UsePathStyle = true
		}
	})
	publicBaseURL := strings.TrimSuffix(configuration.PublicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", configuration.Bucket, configuration.Region)
	}
	return &S3Store{
		client:        client,
		bucket:        configuration.Bucket,
		publicBaseURL: publicBaseURL,
	}, nil
}

// Save uploads the content and returns the public object URL.
func (store *S3Store) Save(ctx context.Context, filename string, contentType string, content io.Reader) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("mediastore.s3.save: %w", ErrEmptyFilename)
	}
	if content == nil {
		return "", fmt.Errorf("mediastore.s3.save: %w", ErrEmptyBody)
	}
	key := objectKey(filename)
	putInput := &s3.PutObjectInput{
		Bucket: aws.String(store.bucket),
		Key:    aws.String(key),
		Body:   content,
	}
	if contentType != "" {
		putInput.ContentType = aws.String(contentType)
	}
	if _, putErr := store.client.PutObject(ctx, putInput); putErr != nil {
		return "", fmt.Errorf("mediastore.s3.save: %w", putErr)
	}
	return store.publicBaseURL + "/" + key, nil
}
