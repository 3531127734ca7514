package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client     *minio.Client // MinIO客户端
	bucketName string        // 存储桶名称
}

// MinioConfig MinIO存储配置
type MinioConfig struct {
	Endpoint  string // MinIO服务端点
	AccessKey string // 访问密钥ID
	SecretKey string // 秘密访问密钥
	UseSSL    bool   // 是否使用SSL
	Bucket    string // 存储桶名称
}

// NewMinioStorage 创建MinIO存储实例，存储桶不存在时自动创建
func NewMinioStorage(ctx context.Context, cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Save 上传文件，大小未知时使用分片流式上传
func (s *MinioStorage) Save(ctx context.Context, reader io.Reader, key string) (FileInfo, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, key, reader, -1,
		minio.PutObjectOptions{ContentType: getMimeType(key)})
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %w", err)
	}
	return s.Stat(ctx, key)
}

// Get 获取MinIO中的对象
func (s *MinioStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	// GetObject是惰性的，先Stat以便区分不存在的对象
	if _, err := s.Stat(ctx, key); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return obj, nil
}

// Stat 获取对象元数据
func (s *MinioStorage) Stat(ctx context.Context, key string) (FileInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return FileInfo{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return FileInfo{}, fmt.Errorf("failed to stat object: %w", err)
	}
	return objectToFileInfo(info), nil
}

// List 列出带指定前缀的对象
func (s *MinioStorage) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	var files []FileInfo

	// 提前返回时取消，让ListObjects的生产者协程退出
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	objectCh := s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %w", object.Err)
		}
		files = append(files, objectToFileInfo(object))
	}

	return files, nil
}

func objectToFileInfo(object minio.ObjectInfo) FileInfo {
	mimeType := object.ContentType
	if mimeType == "" {
		mimeType = getMimeType(object.Key)
	}
	return FileInfo{
		Key:      object.Key,
		Name:     path.Base(object.Key),
		Size:     object.Size,
		MimeType: mimeType,
		ModTime:  object.LastModified,
	}
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
