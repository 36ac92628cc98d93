package claim

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
)

// releaseScript deletes the key only when it still holds our token.
var releaseScript = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ValkeyStore shares claims across instances with SET NX PX.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a Valkey backed claim store.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "claim"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

func (s *ValkeyStore) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	token := uuid.NewString()
	cmd := s.client.B().Set().Key(s.key(key)).Value(token).Nx().PxMilliseconds(ttl.Milliseconds()).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return token, true, nil
}

func (s *ValkeyStore) Release(ctx context.Context, key, token string) error {
	err := releaseScript.Exec(ctx, s.client, []string{s.key(key)}, []string{token}).Error()
	if valkey.IsValkeyNil(err) {
		return nil
	}
	return err
}

func (s *ValkeyStore) key(key string) string {
	return s.prefix + ":" + key
}

var _ evaluation.ClaimStore = (*ValkeyStore)(nil)
