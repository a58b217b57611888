package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dkotelnikov/authd/internal/util"
)

const (
	loginAttemptsKeyPrefix = "login_attempts:"
	loginBlockKeyPrefix    = "login_block:"
)

// RateLimiterService считает попытки логина по ключу (адресу клиента)
// в fixed window и блокирует ключ на BlockTime после превышения лимита.
type RateLimiterService struct {
	rdb       *redis.Client
	log       *zap.SugaredLogger
	limit     int
	interval  time.Duration
	blockTime time.Duration
}

func NewRateLimiterService(rdb *redis.Client, log *zap.SugaredLogger, cfg *util.RateLimiterConfig) *RateLimiterService {
	return &RateLimiterService{
		rdb:       rdb,
		log:       log,
		limit:     cfg.Limit,
		interval:  cfg.Interval,
		blockTime: cfg.BlockTime,
	}
}

// Allow возвращает false, если ключ заблокирован или исчерпал лимит окна.
// Ошибки Redis не блокируют логин: лимитер это защита, а не зависимость.
func (s *RateLimiterService) Allow(ctx context.Context, key string) bool {
	blocked, err := s.rdb.Exists(ctx, loginBlockKeyPrefix+key).Result()
	if err != nil {
		s.log.Errorw("rate limiter block check failed", "error", err)
		return true
	}
	if blocked > 0 {
		return false
	}

	attemptsKey := loginAttemptsKeyPrefix + key
	count, err := s.rdb.Incr(ctx, attemptsKey).Result()
	if err != nil {
		s.log.Errorw("rate limiter incr failed", "error", err)
		return true
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, attemptsKey, s.interval).Err(); err != nil {
			s.log.Errorw("rate limiter expire failed", "error", err)
		}
	}

	if count > int64(s.limit) {
		pipe := s.rdb.Pipeline()
		pipe.Set(ctx, loginBlockKeyPrefix+key, "blocked", s.blockTime)
		pipe.Del(ctx, attemptsKey)
		if _, err := pipe.Exec(ctx); err != nil {
			s.log.Errorw("rate limiter block failed", "error", err)
		}
		s.log.Warnw("login rate limit exceeded", "key", key)
		return false
	}

	return true
}
