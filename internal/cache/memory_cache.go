package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 进程内缓存，基于go-cache
// 与RedisCache一致：键带前缀存储，Clear只删除本前缀下的键
type MemoryCache struct {
	items  *gocache.Cache
	prefix string
}

// NewMemoryCache 创建内存缓存，未配置的过期时间和清理间隔使用DefaultConfig中的值
func NewMemoryCache(config Config) (Cache, error) {
	defaults := DefaultConfig()

	ttl := config.DefaultTTL
	if ttl <= 0 {
		ttl = defaults.DefaultTTL
	}
	cleanup := config.CleanupInterval
	if cleanup <= 0 {
		cleanup = defaults.CleanupInterval
	}

	return &MemoryCache{
		items:  gocache.New(ttl, cleanup),
		prefix: config.KeyPrefix,
	}, nil
}

func (m *MemoryCache) key(k string) string {
	return m.prefix + k
}

// Get 获取缓存内容
func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	value, found := m.items.Get(m.key(key))
	if !found {
		return "", false, nil
	}
	str, ok := value.(string)
	return str, ok, nil
}

// Set 写入缓存，ttl为0时使用默认过期时间
func (m *MemoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.items.Set(m.key(key), value, ttl)
	return nil
}

// Delete 删除缓存项
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.items.Delete(m.key(key))
	return nil
}

// Clear 删除本前缀下的所有缓存项
func (m *MemoryCache) Clear(_ context.Context) error {
	if m.prefix == "" {
		m.items.Flush()
		return nil
	}
	for k := range m.items.Items() {
		if strings.HasPrefix(k, m.prefix) {
			m.items.Delete(k)
		}
	}
	return nil
}

func init() {
	RegisterCache("memory", NewMemoryCache)
}
