package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/fyerfyer/doc-chunker/internal/cache"
	"github.com/fyerfyer/doc-chunker/internal/document"
	"github.com/fyerfyer/doc-chunker/internal/logger"
	"github.com/fyerfyer/doc-chunker/pkg/storage"
	"github.com/sirupsen/logrus"
)

var (
	// ErrChunkIndexOutOfRange 请求的块序号超出范围
	ErrChunkIndexOutOfRange = errors.New("chunk index out of range")

	// ErrNoDocuments 前缀下没有可加载的文档
	ErrNoDocuments = errors.New("no documents found")

	// ErrCacheDisabled 未配置缓存
	ErrCacheDisabled = errors.New("chunk cache is disabled")
)

// ChunkService 分段服务
// 负责协调文档读取、加载、分段和结果缓存
type ChunkService struct {
	storage  storage.Storage             // 文档来源存储
	splitter *document.CharacterSplitter // 文本分段器
	engine   document.PDFEngine          // PDF解析引擎
	cache    cache.Cache                 // 分段结果缓存(可选)
	cacheTTL time.Duration               // 缓存过期时间
	refresh  bool                        // 忽略已有缓存并重新切分
	logger   *logrus.Logger              // 日志记录器
}

// ChunkOption 分段服务配置选项
type ChunkOption func(*ChunkService)

// NewChunkService 创建一个新的分段服务
func NewChunkService(store storage.Storage, splitter *document.CharacterSplitter, opts ...ChunkOption) *ChunkService {
	srv := &ChunkService{
		storage:  store,
		splitter: splitter,
		engine:   document.EngineLedongthuc,
		cacheTTL: time.Hour,
		logger:   logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithCache 设置分段结果缓存
func WithCache(c cache.Cache, ttl time.Duration) ChunkOption {
	return func(s *ChunkService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithRefresh 读取前删除文档对应的缓存项，结果重新写入缓存
func WithRefresh(refresh bool) ChunkOption {
	return func(s *ChunkService) {
		s.refresh = refresh
	}
}

// WithPDFEngine 设置PDF解析引擎
func WithPDFEngine(engine document.PDFEngine) ChunkOption {
	return func(s *ChunkService) {
		if engine != "" {
			s.engine = engine
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(l *logrus.Logger) ChunkOption {
	return func(s *ChunkService) {
		if l != nil {
			s.logger = l
		}
	}
}

// Chunk 读取key对应的文档并切分
func (s *ChunkService) Chunk(ctx context.Context, key string) ([]document.Chunk, error) {
	start := time.Now()
	log := s.logger.WithField(logger.FieldSource, key)

	loader, err := document.LoaderFactory(key, document.WithEngine(s.engine))
	if err != nil {
		return nil, err
	}

	data, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}

	cacheKey := s.cacheKey(data)
	if s.refresh {
		s.invalidate(ctx, cacheKey, log)
	} else if chunks, ok := s.fromCache(ctx, cacheKey, log); ok {
		log.WithFields(logrus.Fields{
			logger.FieldChunks:   len(chunks),
			logger.FieldCacheHit: true,
			logger.FieldLatency:  time.Since(start).String(),
		}).Info("Document chunked")
		return chunks, nil
	}

	docs, err := loader.LoadReader(bytes.NewReader(data), key)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	log.WithField(logger.FieldDocuments, len(docs)).Debug("Document loaded")

	chunks, err := s.splitter.Split(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", key, err)
	}

	s.toCache(ctx, cacheKey, chunks, log)

	log.WithFields(logrus.Fields{
		logger.FieldDocuments: len(docs),
		logger.FieldChunks:    len(chunks),
		logger.FieldCacheHit:  false,
		logger.FieldLatency:   time.Since(start).String(),
	}).Info("Document chunked")

	return chunks, nil
}

// ChunkPrefix 切分存储中带指定前缀的所有文档
// 不支持的文件类型被跳过，结果按键排序后依次拼接
func (s *ChunkService) ChunkPrefix(ctx context.Context, prefix string) ([]document.Chunk, error) {
	files, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", document.ErrIO, err)
	}

	keys := make([]string, 0, len(files))
	for _, f := range files {
		if document.DetectContentType(f.Key) == document.Unknown {
			s.logger.WithField(logger.FieldSource, f.Key).Debug("Skipping unsupported file")
			continue
		}
		keys = append(keys, f.Key)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w under %q", ErrNoDocuments, prefix)
	}
	sort.Strings(keys)

	var all []document.Chunk
	for _, key := range keys {
		chunks, err := s.Chunk(ctx, key)
		if err != nil {
			return nil, err
		}
		all = append(all, chunks...)
	}

	s.logger.WithFields(logrus.Fields{
		logger.FieldSource:    prefix,
		logger.FieldDocuments: len(keys),
		logger.FieldChunks:    len(all),
	}).Info("Prefix chunked")

	return all, nil
}

// Import 把文档保存到存储中，保存前检查文件类型
func (s *ChunkService) Import(ctx context.Context, r io.Reader, key string) (storage.FileInfo, error) {
	if document.DetectContentType(key) == document.Unknown {
		return storage.FileInfo{}, fmt.Errorf("%w: %s", document.ErrUnsupportedFormat, key)
	}

	info, err := s.storage.Save(ctx, r, key)
	if err != nil {
		return storage.FileInfo{}, fmt.Errorf("%w: %w", document.ErrIO, err)
	}

	s.logger.WithFields(logrus.Fields{
		logger.FieldSource: info.Key,
		"size":             info.Size,
	}).Info("Document imported")
	return info, nil
}

// ClearCache 清空分段结果缓存
func (s *ChunkService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return ErrCacheDisabled
	}
	if err := s.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear chunk cache: %w", err)
	}
	s.logger.Info("Chunk cache cleared")
	return nil
}

// read 从存储中读取全部内容
func (s *ChunkService) read(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.storage.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", document.ErrIO, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", document.ErrIO, key, err)
	}
	return data, nil
}

// cacheKey 由内容摘要和分段配置组成
func (s *ChunkService) cacheKey(data []byte) string {
	cfg := s.splitter.Config()
	flags := fmt.Sprintf("k%tw%t", cfg.KeepSeparator, cfg.StripWhitespace)
	return cache.GenerateCacheKey("chunks",
		cache.ContentHash(data),
		strconv.Itoa(cfg.ChunkSize),
		strconv.Itoa(cfg.ChunkOverlap),
		hex.EncodeToString([]byte(cfg.Separator)),
		flags,
		string(s.engine),
	)
}

// fromCache 读取缓存，缓存错误只记录日志
func (s *ChunkService) fromCache(ctx context.Context, key string, log *logrus.Entry) ([]document.Chunk, bool) {
	if s.cache == nil {
		return nil, false
	}

	value, found, err := s.cache.Get(ctx, key)
	if err != nil {
		log.WithField(logger.FieldError, err.Error()).Warn("Failed to read chunk cache")
		return nil, false
	}
	if !found {
		return nil, false
	}

	var chunks []document.Chunk
	if err := json.Unmarshal([]byte(value), &chunks); err != nil {
		log.WithField(logger.FieldError, err.Error()).Warn("Discarding malformed cache entry")
		return nil, false
	}
	return chunks, true
}

// invalidate 删除缓存项，缓存错误只记录日志
func (s *ChunkService) invalidate(ctx context.Context, key string, log *logrus.Entry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		log.WithField(logger.FieldError, err.Error()).Warn("Failed to delete chunk cache entry")
	}
}

// toCache 写入缓存，缓存错误只记录日志
func (s *ChunkService) toCache(ctx context.Context, key string, chunks []document.Chunk, log *logrus.Entry) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(chunks)
	if err != nil {
		log.WithField(logger.FieldError, err.Error()).Warn("Failed to encode chunks for cache")
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
		log.WithField(logger.FieldError, err.Error()).Warn("Failed to write chunk cache")
	}
}

// SelectChunk 返回指定序号的块
func SelectChunk(chunks []document.Chunk, index int) (document.Chunk, error) {
	if index < 0 || index >= len(chunks) {
		return document.Chunk{}, fmt.Errorf("%w: %d (have %d chunks)", ErrChunkIndexOutOfRange, index, len(chunks))
	}
	return chunks[index], nil
}
