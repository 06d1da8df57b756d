package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"EchoFM/config"
	"EchoFM/logger"
)

var minioClient *minio.Client

// InitMinio initializes the MinIO client and makes sure the bucket
// exists. Optional: the server runs without object storage when
// MINIO_ENABLED is off, downloads then stay local only.
func InitMinio(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		}); err != nil {
			return fmt.Errorf("create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	logger.Info("MinIO connection established",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return nil
}

// GetMinioClient returns the client, or nil when object storage is
// disabled.
func GetMinioClient() *minio.Client {
	return minioClient
}

// MirrorFile uploads a local file under objectName, preserving the
// content type. Used to mirror downloaded playlists into the bucket.
func MirrorFile(ctx context.Context, bucket, objectName, localPath, contentType string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	_, err = minioClient.PutObject(ctx, bucket, objectName, f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", objectName, err)
	}

	logger.Info("mirrored file to object storage",
		logger.String("object", objectName),
		logger.String("file", filepath.Base(localPath)))
	return nil
}

// TestMinio verifies the connection with a small write/read/delete
// cycle against the given bucket.
func TestMinio(cfg *config.Config) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const testObject = "test/connection.txt"
	content := "connection check at " + time.Now().Format(time.RFC3339)

	_, err := minioClient.PutObject(ctx, cfg.MinioBucket, testObject,
		strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return fmt.Errorf("upload test object: %w", err)
	}

	obj, err := minioClient.GetObject(ctx, cfg.MinioBucket, testObject, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("read test object: %w", err)
	}
	obj.Close()

	return minioClient.RemoveObject(ctx, cfg.MinioBucket, testObject, minio.RemoveObjectOptions{})
}
