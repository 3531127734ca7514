package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fyerfyer/doc-chunker/config"
	"github.com/fyerfyer/doc-chunker/internal/cache"
	"github.com/fyerfyer/doc-chunker/internal/document"
	"github.com/fyerfyer/doc-chunker/internal/logger"
	"github.com/fyerfyer/doc-chunker/internal/services"
	"github.com/fyerfyer/doc-chunker/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// app 一次命令执行所需的组件
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	service *services.ChunkService
	closers []io.Closer
}

// newApp 按 配置 -> 日志 -> 存储 -> 缓存 -> 服务 的顺序组装组件
func newApp(ctx context.Context, v *viper.Viper, configFile string, extra ...services.ChunkOption) (*app, error) {
	cfg, err := config.LoadWithViper(v, configFile)
	if err != nil {
		return nil, err
	}

	log, err := logger.Setup(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(ctx, storage.Config{
		Type:      cfg.Storage.Type,
		Path:      cfg.Storage.Path,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	splitter, err := document.NewCharacterSplitter(document.SplitterConfig{
		ChunkSize:       cfg.Document.ChunkSize,
		ChunkOverlap:    cfg.Document.ChunkOverlap,
		Separator:       cfg.Document.Separator,
		KeepSeparator:   cfg.Document.KeepSeparator,
		StripWhitespace: cfg.Document.StripWhitespace,
	}, document.WithSplitterLogger(log))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	opts := []services.ChunkOption{
		services.WithPDFEngine(document.PDFEngine(cfg.Document.PDFEngine)),
		services.WithLogger(log),
	}
	if cfg.Cache.Enable {
		c, err := newCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		// Redis缓存持有连接池，命令结束时关闭
		if closer, ok := c.(io.Closer); ok {
			a.closers = append(a.closers, closer)
		}
		opts = append(opts, services.WithCache(c, time.Duration(cfg.Cache.TTL)*time.Second))
	}
	opts = append(opts, extra...)

	a.service = services.NewChunkService(store, splitter, opts...)
	return a, nil
}

// Close 释放组件持有的资源
func (a *app) Close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.log.WithField(logger.FieldError, err.Error()).Warn("Failed to close resource")
		}
	}
}

// newCache 按配置创建分段结果缓存
func newCache(cfg config.CacheConfig) (cache.Cache, error) {
	cacheCfg := cache.DefaultConfig()
	cacheCfg.Type = cfg.Type
	cacheCfg.RedisAddr = cfg.Address
	cacheCfg.RedisPassword = cfg.Password
	cacheCfg.RedisDB = cfg.DB
	cacheCfg.DefaultTTL = time.Duration(cfg.TTL) * time.Second

	c, err := cache.NewCache(cacheCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return c, nil
}
