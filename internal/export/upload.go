package export

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/saveme/internal/netx"
	"github.com/google/uuid"
)

// S3Config points at an S3-compatible bucket (AWS, MinIO).
type S3Config struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Prefix    string `json:"prefix"`
}

// Enabled reports whether uploads are configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Presigner is the part of *s3.PresignClient the uploader needs.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Uploader stores exports in a bucket through presigned PUT URLs.
type Uploader struct {
	presign Presigner
	bucket  string
	prefix  string
	client  *http.Client
	now     func() time.Time
}

func NewUploaderWith(p Presigner, bucket, prefix string, client *http.Client) *Uploader {
	return &Uploader{presign: p, bucket: bucket, prefix: prefix, client: client, now: time.Now}
}

// NewUploader builds an S3 presign client from static credentials.
func NewUploader(ctx context.Context, c S3Config) (*Uploader, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewUploaderWith(s3.NewPresignClient(client), c.Bucket, c.Prefix, nil), nil
}

// ObjectKey returns where an export of userID taken now is stored.
func (u *Uploader) ObjectKey(userID string) string {
	d := u.now().UTC()
	return fmt.Sprintf("%sexports/%s/%04d/%02d/%02d/%s.json", u.prefix, userID, d.Year(), d.Month(), d.Day(), uuid.New())
}

// Upload stores data under a fresh key and returns the key.
func (u *Uploader) Upload(ctx context.Context, userID string, data []byte, contentType string) (string, error) {
	key := u.ObjectKey(userID)
	bucket := u.bucket

	req, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(15*time.Minute))
	if err != nil {
		return "", fmt.Errorf("presign put: %w", err)
	}

	if err := netx.UploadToPresignedURL(ctx, u.client, req.URL, contentType, data); err != nil {
		return "", err
	}
	return key, nil
}
