package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"kgicweb/config"
	"kgicweb/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// PublicPathPrefix is the URL path under which objects are served by this site.
const PublicPathPrefix = "/storage/v1/object/public/"

// UploadResult 上传结果
type UploadResult struct {
	Path      string `json:"path"`
	PublicURL string `json:"publicUrl"`
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// MinioStore 封装 MinIO 客户端，所有对象都存放在同一个存储桶
type MinioStore struct {
	client     *minio.Client
	bucket     string
	region     string
	publicBase string

	mu          sync.Mutex
	bucketReady bool
}

// NewMinioStore 创建 MinIO 存储，不会发起网络请求
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	if !cfg.StorageConfigured() {
		return nil, ErrNotConfigured
	}

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	logger.Info("MinIO client created",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket),
		logger.Bool("ssl", cfg.MinioUseSSL))

	return &MinioStore{
		client:     client,
		bucket:     cfg.MinioBucket,
		region:     cfg.MinioRegion,
		publicBase: cfg.PublicBaseURL,
	}, nil
}

// Bucket returns the configured bucket name.
func (s *MinioStore) Bucket() string { return s.bucket }

// EnsureBucket 检查存储桶是否存在，不存在则创建。成功一次后不再检查
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketReady {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("Bucket created", logger.String("bucket", s.bucket))
	}
	s.bucketReady = true
	return nil
}

// Upload stores the payload at objectPath and returns its public URL.
// size may be -1 when unknown.
func (s *MinioStore) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (*UploadResult, error) {
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	info, err := s.client.PutObject(ctx, s.bucket, objectPath, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("上传文件失败: %w", err)
	}

	logger.Info("Object uploaded",
		logger.String("path", objectPath),
		logger.Int64("size", info.Size),
		logger.String("contentType", contentType))

	return &UploadResult{Path: objectPath, PublicURL: s.PublicURL(objectPath)}, nil
}

// PublicURL is the site URL that serves the object through the storage proxy.
func (s *MinioStore) PublicURL(objectPath string) string {
	return s.publicBase + PublicPathPrefix + s.bucket + "/" + objectPath
}

// SignedURL mints a time-limited GET URL for the object.
func (s *MinioStore) SignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectPath, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("生成签名链接失败: %w", err)
	}
	return u.String(), nil
}

// Open streams an object. The caller must close the reader.
func (s *MinioStore) Open(ctx context.Context, objectPath string) (io.ReadCloser, *ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("读取对象失败: %w", err)
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, fmt.Errorf("读取对象信息失败: %w", err)
	}
	return obj, toObjectInfo(stat), nil
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return false
	}
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}

func toObjectInfo(o minio.ObjectInfo) *ObjectInfo {
	return &ObjectInfo{
		Key:          o.Key,
		Size:         o.Size,
		LastModified: o.LastModified,
		ContentType:  o.ContentType,
		ETag:         o.ETag,
	}
}
