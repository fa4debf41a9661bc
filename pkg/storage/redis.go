package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	PONG               = "PONG"
	RedisScanBatchSize = 1000
	namespaceSeparator = ":"
)

func init() {
	if err := RegisterStorage(Redis, func() ServiceStorage { return new(RedisDB) }); err != nil {
		panic(err)
	}
}

type RedisDB struct {
	db *redis.Client
}

// Init connects to redis. The address option is required.
func (b *RedisDB) Init(opts ...Option) error {
	addr, ok := getOption(opts, RedisAddressOption)
	if !ok {
		return errors.New("redis address option is required")
	}
	address, ok := addr.(string)
	if !ok || address == "" {
		return errors.New("redis address must be a non-empty string")
	}
	var password string
	if pw, ok := getOption(opts, PasswordOption); ok {
		if password, ok = pw.(string); !ok {
			return errors.New("redis password must be a string")
		}
	}

	b.db = redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
	})

	if flush, ok := getOption(opts, RedisFlushOption); ok {
		if f, ok := flush.(bool); ok && f {
			if err := b.db.FlushAll(context.Background()).Err(); err != nil {
				return errors.Wrap(err, "flushing redis")
			}
		}
	}
	return nil
}

func (b *RedisDB) URI() string {
	return b.db.Options().Addr
}

func (b *RedisDB) IsOpen() bool {
	pong, err := b.db.Ping(context.Background()).Result()
	if err != nil {
		logrus.WithError(err).Error("pinging redis")
		return false
	}
	return pong == PONG
}

func (b *RedisDB) Type() Type {
	return Redis
}

func (b *RedisDB) Close() error {
	return b.db.Close()
}

func (b *RedisDB) Write(ctx context.Context, namespace, key string, value []byte) error {
	// zero expiration means the key has no expiration time
	return b.db.Set(ctx, getRedisKey(namespace, key), value, 0).Err()
}

func (b *RedisDB) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	res, err := b.db.Get(ctx, getRedisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		logrus.Debugf("key<%s> not found in namespace<%s>", key, namespace)
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading key<%s> from namespace<%s>", key, namespace)
	}
	return res, nil
}

func (b *RedisDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := b.db.Exists(ctx, getRedisKey(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisDB) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	keys, err := b.scanKeys(ctx, namespace)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	values, err := b.db.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "reading all values in namespace<%s>", namespace)
	}
	for i, v := range values {
		// the key may have been deleted between the scan and the read
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected value type<%T> for key<%s>", v, keys[i])
		}
		result[strings.TrimPrefix(keys[i], namespace+namespaceSeparator)] = []byte(s)
	}
	return result, nil
}

func (b *RedisDB) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := b.scanKeys(ctx, namespace)
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, strings.TrimPrefix(k, namespace+namespaceSeparator))
	}
	return result, nil
}

func (b *RedisDB) Delete(ctx context.Context, namespace, key string) error {
	n, err := b.db.Del(ctx, getRedisKey(namespace, key)).Result()
	if err != nil {
		return errors.Wrapf(err, "deleting key<%s> in namespace<%s>", key, namespace)
	}
	if n == 0 {
		logrus.Debugf("key<%s> not found in namespace<%s>", key, namespace)
	}
	return nil
}

func (b *RedisDB) DeleteNamespace(ctx context.Context, namespace string) error {
	keys, err := b.scanKeys(ctx, namespace)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("could not delete namespace<%s>, namespace does not exist", namespace)
	}
	return b.db.Del(ctx, keys...).Err()
}

func (b *RedisDB) scanKeys(ctx context.Context, namespace string) ([]string, error) {
	var (
		cursor uint64
		keys   []string
	)
	match := namespace + namespaceSeparator + "*"
	for {
		batch, next, err := b.db.Scan(ctx, cursor, match, RedisScanBatchSize).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "scanning namespace<%s>", namespace)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func getRedisKey(namespace, key string) string {
	return namespace + namespaceSeparator + key
}
