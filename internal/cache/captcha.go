package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rbac-admin/internal/model"
)

const (
	captchaMissing  = -1
	captchaMismatch = 0
	captchaMatched  = 1
)

// Compare-and-delete so a correct answer can be consumed only once.
var consumeCaptchaLua = redis.NewScript(`
local stored = redis.call("GET", KEYS[1])
if not stored then
  return -1
end
if stored == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`)

type CaptchaStore struct {
	rdb redis.UniversalClient
}

func NewCaptchaStore(rdb redis.UniversalClient) *CaptchaStore {
	return &CaptchaStore{rdb: rdb}
}

func (s *CaptchaStore) Save(ctx context.Context, key string, answer string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, captchaKey(key), normalizeAnswer(answer), ttl).Err(); err != nil {
		return fmt.Errorf("save captcha: %w", err)
	}
	return nil
}

// Consume checks answer case-insensitively. A match deletes the stored
// answer; a mismatch leaves it in place until it expires.
func (s *CaptchaStore) Consume(ctx context.Context, key string, answer string) error {
	key = strings.TrimSpace(key)
	answer = normalizeAnswer(answer)
	if key == "" || answer == "" {
		return model.ErrCaptchaMissing
	}

	result, err := consumeCaptchaLua.Run(ctx, s.rdb, []string{captchaKey(key)}, answer).Int()
	if err != nil {
		return fmt.Errorf("verify captcha: %w", err)
	}

	switch result {
	case captchaMatched:
		return nil
	case captchaMissing:
		return model.ErrCaptchaMissing
	case captchaMismatch:
		return model.ErrCaptchaInvalid
	default:
		return fmt.Errorf("verify captcha: unexpected result %d", result)
	}
}

func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}
