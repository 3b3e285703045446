package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/config"
)

// gifCacheControl applies to generated GIFs. Their keys embed the job ID so
// an object never changes once written.
const gifCacheControl = "public, max-age=31536000, immutable"

// StorageClient holds source clips and generated GIFs
type StorageClient interface {
	// PutObject stores body under key and returns the URL workers read it from
	PutObject(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	// DeleteObjects removes every key in one request
	DeleteObjects(ctx context.Context, keys []string) error
	// PresignGet returns a time-limited download link
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// R2Client is the Cloudflare R2 StorageClient
type R2Client struct {
	api       *s3.Client
	presigner *s3.PresignClient
	bucket    string
	baseURL   string
}

// NewR2Client connects to the account's R2 endpoint with static credentials
func NewR2Client(ctx context.Context, cfg *config.R2Config) (*R2Client, error) {
	var missing []string
	for name, v := range map[string]string{
		"account_id":        cfg.AccountID,
		"access_key_id":     cfg.AccessKeyID,
		"secret_access_key": cfg.SecretAccessKey,
		"bucket_name":       cfg.BucketName,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("r2: missing %s", strings.Join(missing, ", "))
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("r2: load aws config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	baseURL := strings.TrimRight(cfg.PublicURL, "/")
	if baseURL == "" {
		baseURL = endpoint + "/" + cfg.BucketName
	}
	return &R2Client{
		api:       api,
		presigner: s3.NewPresignClient(api),
		bucket:    cfg.BucketName,
		baseURL:   baseURL,
	}, nil
}

func (c *R2Client) PutObject(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if strings.HasSuffix(key, ".gif") {
		in.CacheControl = aws.String(gifCacheControl)
	}
	if _, err := c.api.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("r2: put %s: %w", key, err)
	}
	return ObjectURL(c.baseURL, key), nil
}

func (c *R2Client) DeleteObjects(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	ids := make([]types.ObjectIdentifier, len(keys))
	for i, key := range keys {
		ids[i] = types.ObjectIdentifier{Key: aws.String(key)}
	}
	out, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(c.bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return fmt.Errorf("r2: delete %d objects: %w", len(keys), err)
	}
	var errs []error
	for _, e := range out.Errors {
		errs = append(errs, fmt.Errorf("r2: delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message)))
	}
	return errors.Join(errs...)
}

func (c *R2Client) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("r2: presign %s: %w", key, err)
	}
	return req.URL, nil
}
