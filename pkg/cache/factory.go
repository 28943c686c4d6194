package cache

import "fmt"

// New 根据配置创建缓存实例
func New(config Config) (Cache, error) {
	switch config.Type {
	case "", "local":
		return NewGoCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unknown cache type: %s", config.Type)
	}
}
