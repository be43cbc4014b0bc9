package admission

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// The window lives in the key TTL, so an expired key is a fresh window and
// redis does the sweeping. Compare and increment run in one script to stay
// atomic across processes.
var admitScript = redis.NewScript(`
local count = redis.call('GET', KEYS[1])
if not count then
	redis.call('SET', KEYS[1], 1, 'PX', ARGV[2])
	return 1
end
if tonumber(count) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('INCR', KEYS[1])
return 1
`)

// Redis shares counters between every process pointed at the same server.
type Redis struct {
	client redis.Scripter
	cfg    Config
	prefix string
}

// NewRedis stores counters under "<prefix>:<key>".
func NewRedis(client redis.Scripter, cfg Config, prefix string) *Redis {
	prefix = strings.TrimRight(prefix, ":")
	if prefix == "" {
		prefix = "admission"
	}

	return &Redis{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: prefix,
	}
}

func (r *Redis) Admit(ctx context.Context, key string) (bool, error) {
	res, err := admitScript.Run(ctx, r.client,
		[]string{r.prefix + ":" + key},
		r.cfg.Limit, r.cfg.Window.Milliseconds(),
	).Int()
	if err != nil {
		// Fail open so a redis outage doesn't take beacon creation down with it
		return true, fmt.Errorf("failed to run admission script, %w", err)
	}

	return res == 1, nil
}
