// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"github.com/zeebo/blake3"
)

var (
	ErrCacheMiss     = errors.New("key not found in cache")
	ErrCacheDisabled = errors.New("cache has not been configured")
)

var rdb *redis.Client
var cache *lru.Cache

// SetupCache creates the in-process LRU and, when cache.redis_url is set, the
// shared redis client. Provider responses are stored lz4 compressed in both.
func SetupCache() error {
	var err error

	rdb = nil
	if redisURL := viper.GetString("cache.redis_url"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return fmt.Errorf("could not parse redis URL: %w", err)
		}

		rdb = redis.NewClient(opt)
	}

	size := viper.GetInt("cache.local_size")
	if size <= 0 {
		size = 128
	}

	cache, err = lru.New(size)
	if err != nil {
		return fmt.Errorf("could not create LRU cache: %w", err)
	}

	log.Debug().Int("Size", size).Bool("Redis", rdb != nil).Msg("cache initialized")
	return nil
}

// CacheKey hashes the given parts into a fixed length key
func CacheKey(parts ...string) string {
	sum := blake3.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func CacheSet(ctx context.Context, key string, val []byte) error {
	if cache == nil {
		return ErrCacheDisabled
	}

	compressed, err := compress(val)
	if err != nil {
		return err
	}
	cache.Add(key, compressed)

	if rdb != nil {
		return rdb.Set(ctx, key, compressed, cacheTTL()).Err()
	}
	return nil
}

func CacheGet(ctx context.Context, key string) ([]byte, error) {
	if cache == nil {
		return nil, ErrCacheDisabled
	}

	if v, ok := cache.Get(key); ok {
		return decompress(v.([]byte))
	}

	if rdb == nil {
		return nil, ErrCacheMiss
	}

	val, err := rdb.GetEx(ctx, key, cacheTTL()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	cache.Add(key, val)
	return decompress(val)
}

func cacheTTL() time.Duration {
	ttl := viper.GetInt("cache.ttl")
	if ttl <= 0 {
		ttl = 86400
	}
	return time.Duration(ttl) * time.Second
}

func compress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	zw := lz4.NewWriter(w)
	if _, err := io.Copy(zw, bytes.NewReader(in)); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decompress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	zr := lz4.NewReader(bytes.NewReader(in))
	if _, err := io.Copy(w, zr); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
