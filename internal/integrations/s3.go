package integrations

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"apgc/backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client stores printable ticket QR images in an S3-compatible bucket.
type S3Client struct {
	bucket         string
	publicEndpoint string
	client         *s3.Client
}

// NewS3 builds a path-style client for cfg.Endpoint, or AWS when it is empty.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
	publicEndpoint := normalizeEndpoint(cfg.PublicEndpoint, cfg.UseSSL)
	if publicEndpoint == "" {
		publicEndpoint = endpoint
	}

	options := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if endpoint != "" {
		options.BaseEndpoint = aws.String(endpoint)
	}

	return &S3Client{
		bucket:         cfg.Bucket,
		publicEndpoint: publicEndpoint,
		client:         s3.New(options),
	}, nil
}

// UploadTicketQR stores the PNG under tickets/{code}.png and returns its public URL.
// The key is derived from the immutable code, so re-uploads overwrite in place.
func (s *S3Client) UploadTicketQR(ctx context.Context, code string, png []byte) (string, error) {
	if strings.TrimSpace(code) == "" || len(png) == 0 {
		return "", fmt.Errorf("ticket code and image are required")
	}
	key := TicketQRKey(code)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(png),
		ContentType:   aws.String("image/png"),
		ContentLength: aws.Int64(int64(len(png))),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", err
	}
	return s.PublicURLForKey(key), nil
}

func TicketQRKey(code string) string {
	return "tickets/" + url.PathEscape(strings.TrimSpace(code)) + ".png"
}

// PublicURLForKey builds the browser-facing URL of an object, preferring the
// configured public endpoint over the default S3 host.
func (s *S3Client) PublicURLForKey(key string) string {
	if s.publicEndpoint == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}

	endpoint := s.publicEndpoint
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Sprintf("%s/%s/%s", endpoint, s.bucket, key)
	}
	u.Path = path.Join(u.Path, s.bucket, key)
	return u.String()
}

// normalizeEndpoint adds a scheme to a bare host, https unless useSSL is off.
func normalizeEndpoint(endpoint string, useSSL bool) string {
	if endpoint == "" {
		return ""
	}
	if strings.HasPrefix(endpoint, "http") {
		return endpoint
	}
	scheme := "https"
	if !useSSL {
		scheme = "http"
	}
	return scheme + "://" + endpoint
}
