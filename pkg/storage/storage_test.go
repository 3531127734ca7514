package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readAll 读取文件内容辅助函数
func readAll(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(b)
}

// TestLocalStorage 测试本地存储实现
func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	tempDir := t.TempDir()

	localStorage, err := NewLocalStorage(LocalConfig{Path: tempDir})
	require.NoError(t, err)

	content := "这是一个用于测试的样本文件"
	info, err := localStorage.Save(ctx, strings.NewReader(content), "docs/sample.txt")
	require.NoError(t, err)

	t.Run("Save", func(t *testing.T) {
		assert.Equal(t, "docs/sample.txt", info.Key)
		assert.Equal(t, "sample.txt", info.Name)
		assert.Equal(t, int64(len(content)), info.Size)
		assert.Equal(t, "text/plain", info.MimeType)

		_, err := os.Stat(filepath.Join(tempDir, "docs", "sample.txt"))
		assert.NoError(t, err, "文件应被保存到磁盘")
	})

	t.Run("Get", func(t *testing.T) {
		reader, err := localStorage.Get(ctx, "docs/sample.txt")
		require.NoError(t, err)
		assert.Equal(t, content, readAll(t, reader))
	})

	t.Run("Get absolute path", func(t *testing.T) {
		abs := filepath.Join(t.TempDir(), "outside.md")
		require.NoError(t, os.WriteFile(abs, []byte("# outside"), 0644))

		reader, err := localStorage.Get(ctx, abs)
		require.NoError(t, err)
		assert.Equal(t, "# outside", readAll(t, reader))
	})

	t.Run("Stat", func(t *testing.T) {
		stat, err := localStorage.Stat(ctx, "docs/sample.txt")
		require.NoError(t, err)
		assert.Equal(t, info.Size, stat.Size)

		_, err = localStorage.Stat(ctx, "docs")
		assert.Error(t, err, "目录不是文件")
	})

	t.Run("List", func(t *testing.T) {
		_, err := localStorage.Save(ctx, strings.NewReader("%PDF"), "other/a.pdf")
		require.NoError(t, err)

		all, err := localStorage.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		docs, err := localStorage.List(ctx, "docs/")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "docs/sample.txt", docs[0].Key)
	})

	t.Run("List absolute prefix", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "reports"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", "q1.pdf"), []byte("%PDF"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("n"), 0644))

		files, err := localStorage.List(ctx, filepath.Join(dir, "reports"))
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, filepath.Join(dir, "reports", "q1.pdf"), files[0].Key)

		// 返回的键可以直接用于Get
		reader, err := localStorage.Get(ctx, files[0].Key)
		require.NoError(t, err)
		assert.Equal(t, "%PDF", readAll(t, reader))

		files, err = localStorage.List(ctx, filepath.Join(dir, "no"))
		require.NoError(t, err)
		assert.Len(t, files, 1, "前缀no匹配notes.txt")

		files, err = localStorage.List(ctx, filepath.Join(dir, "missing", "x"))
		require.NoError(t, err)
		assert.Empty(t, files)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := localStorage.Get(ctx, "missing.pdf")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = localStorage.Stat(ctx, "missing.pdf")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(context.Background(), Config{Type: "local", Path: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(context.Background(), Config{Type: "ftp"})
	assert.Error(t, err)
}

func TestGetMimeType(t *testing.T) {
	assert.Equal(t, "application/pdf", getMimeType("a.PDF"))
	assert.Equal(t, "text/markdown", getMimeType("a.md"))
	assert.Equal(t, "application/octet-stream", getMimeType("a.bin"))
}

// TestMinioStorage 测试MinIO存储实现
// 需要设置MINIO_ENDPOINT指向可用的MinIO服务
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set, skipping MinIO tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	minioStorage, err := NewMinioStorage(ctx, MinioConfig{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "doc-chunker-test",
	})
	require.NoError(t, err)

	key := fmt.Sprintf("test/%d.txt", time.Now().UnixNano())
	info, err := minioStorage.Save(ctx, bytes.NewBufferString("minio content"), key)
	require.NoError(t, err)
	assert.Equal(t, key, info.Key)
	assert.Equal(t, int64(len("minio content")), info.Size)

	reader, err := minioStorage.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "minio content", readAll(t, reader))

	files, err := minioStorage.List(ctx, "test/")
	require.NoError(t, err)
	assert.NotEmpty(t, files)

	_, err = minioStorage.Get(ctx, "test/does-not-exist.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

// newFakeMinio 使用httptest模拟S3列表接口
func newFakeMinio(t *testing.T, handler http.HandlerFunc) *MinioStorage {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := minio.New(strings.TrimPrefix(srv.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)
	return &MinioStorage{client: client, bucketName: "docs"}
}

const listBucketResult = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>docs</Name><Prefix>reports/</Prefix><KeyCount>2</KeyCount><MaxKeys>1000</MaxKeys>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>reports/a.pdf</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"1"</ETag><Size>4</Size><StorageClass>STANDARD</StorageClass></Contents>
  <Contents><Key>reports/b.md</Key><LastModified>2024-01-02T03:04:05.000Z</LastModified><ETag>"2"</ETag><Size>9</Size><StorageClass>STANDARD</StorageClass></Contents>
</ListBucketResult>`

const accessDenied = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>AccessDenied</Code><Message>Access Denied.</Message><BucketName>docs</BucketName><Resource>/docs/</Resource><RequestId>1</RequestId></Error>`

// TestMinioStorageList 列表结果和列表错误
func TestMinioStorageList(t *testing.T) {
	ctx := context.Background()

	t.Run("objects", func(t *testing.T) {
		s := newFakeMinio(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "reports/", r.URL.Query().Get("prefix"))
			w.Header().Set("Content-Type", "application/xml")
			fmt.Fprint(w, listBucketResult)
		})

		files, err := s.List(ctx, "reports/")
		require.NoError(t, err)
		require.Len(t, files, 2)
		assert.Equal(t, "reports/a.pdf", files[0].Key)
		assert.Equal(t, "a.pdf", files[0].Name)
		assert.Equal(t, "application/pdf", files[0].MimeType)
		assert.Equal(t, int64(9), files[1].Size)
	})

	t.Run("error stops listing", func(t *testing.T) {
		var requests atomic.Int32
		s := newFakeMinio(t, func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, accessDenied)
		})

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		_, err := s.List(ctx, "reports/")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Access Denied")
		assert.Equal(t, int32(1), requests.Load())
	})
}
