package redis

import (
	"context"
	"testing"
	"time"

	"sharecast/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClientOptionsFrom(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Address = "redis:6379"
	cfg.Redis.DB = 2
	cfg.Redis.PoolSize = 8

	opts := ClientOptionsFrom(cfg).redisOptions()

	assert.Equal(t, "redis:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 9, opts.PoolSize, "one extra connection for the subscription")
	assert.Equal(t, "sharecast", opts.ClientName)
}

func TestClientOptions_DefaultPoolSize(t *testing.T) {
	opts := ClientOptions{Address: "localhost:6379"}.redisOptions()
	assert.Equal(t, 5, opts.PoolSize)
}

func TestNewClient_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := NewClient(ctx, ClientOptions{Address: "127.0.0.1:1"}, zaptest.NewLogger(t).Sugar())

	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "redis at 127.0.0.1:1 unreachable")
}
