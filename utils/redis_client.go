package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Carbinski/FriendGroupRanker/config"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns a singleton Redis client based on loaded config.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Get()
		addr := net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort))
		client := redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			// Callers treat a nil client as "use the in-memory fallback";
			// caching degrades to plain DB reads.
			if Sugar != nil {
				Sugar.Warnf("redis unreachable at %s, using in-memory fallbacks: %v", addr, err)
			}
			_ = client.Close()
			return
		}
		redisClient = client
	})
	return redisClient
}
