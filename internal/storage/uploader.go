// Package storage uploads loan product images to an S3 compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MaxImageSize bounds an uploaded image.
const MaxImageSize = 5 << 20

var (
	ErrTooLarge   = errors.New("image is too large")
	ErrNotAnImage = errors.New("file is not a supported image")
)

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader stores an image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Options configures a MinioUploader.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
	// PublicURL is the base images are served from. Defaults to the
	// endpoint URL followed by the bucket.
	PublicURL string
}

// MinioUploader writes objects under loans/<uuid><ext>.
type MinioUploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *zap.Logger
}

// NewMinioUploader creates the client. It does not contact the server.
func NewMinioUploader(opts Options, logger *zap.Logger) (*MinioUploader, error) {
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client for %s: %w", opts.Endpoint, err)
	}
	public := strings.TrimRight(opts.PublicURL, "/")
	if public == "" {
		public = client.EndpointURL().String() + "/" + opts.Bucket
	}
	return &MinioUploader{client: client, bucket: opts.Bucket, publicURL: public, logger: logger}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *MinioUploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", u.bucket, err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", u.bucket, err)
	}
	u.logger.Info("bucket created", zap.String("bucket", u.bucket))
	return nil
}

// Upload checks that r holds an image no larger than MaxImageSize and
// stores it under a fresh key.
func (u *MinioUploader) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}
	contentType, ext, err := DetectImage(data, filename)
	if err != nil {
		return "", err
	}
	key := "loans/" + uuid.NewString() + ext
	info, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	u.logger.Info("image uploaded",
		zap.String("bucket", u.bucket),
		zap.String("key", info.Key),
		zap.Int64("size", info.Size))
	return u.publicURL + "/" + key, nil
}

// DetectImage sniffs data and returns its content type and the extension
// used for the object key. The client-supplied name is only a fallback for
// the extension.
func DetectImage(data []byte, filename string) (contentType, ext string, err error) {
	contentType = http.DetectContentType(data)
	ext, ok := imageExt[contentType]
	if !ok {
		return "", "", ErrNotAnImage
	}
	if e := strings.ToLower(filepath.Ext(filename)); e == ext || (ext == ".jpg" && e == ".jpeg") {
		ext = e
	}
	return contentType, ext, nil
}
