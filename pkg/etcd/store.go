package etcd

import (
	"context"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/tzrikka/hookgate/pkg/secrets"
)

const (
	timeout = 3 * time.Second
)

// KV is the subset of [clientv3.KV] that [Store] uses.
type KV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
}

// Store is a [secrets.Store] backed by etcd. Each platform's values are
// stored under "<prefix><platform>/<key>", e.g. "/hookgate/platforms/slack/signing_secret".
// Wrap it with [secrets.NewCached] to avoid a round-trip per webhook.
type Store struct {
	kv     KV
	prefix string
}

func NewStore(kv KV, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{kv: kv, prefix: prefix}
}

// Dial creates an etcd client, and returns it so the caller can close it.
func Dial(endpoints []string) (*clientv3.Client, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return c, nil
}

func (s *Store) Values(ctx context.Context, platform string) (secrets.Values, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir := s.prefix + platform + "/"
	resp, err := s.kv.Get(ctx, dir, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets of %q from etcd: %w", platform, err)
	}

	v := make(secrets.Values, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		key := strings.TrimPrefix(string(kv.Key), dir)
		if key == "" || strings.Contains(key, "/") {
			continue // Not a direct child.
		}
		v[key] = string(kv.Value)
	}

	return v, nil
}
