package persistence

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisKV(t *testing.T) *RedisKV {
	t.Helper()

	url := os.Getenv("STUPLAN_TEST_REDIS_URL")
	if url == "" {
		t.Skip("STUPLAN_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	client, err := ConnectRedis(ctx, url)
	require.NoError(t, err)

	namespace := "stuplan_test:" + uuid.NewString() + ":"
	kv := NewRedisKV(client, namespace)
	t.Cleanup(func() {
		keys, _ := kv.Keys(ctx, "")
		for _, k := range keys {
			kv.Remove(ctx, k)
		}
		client.Close()
	})
	return kv
}

func TestRedisKV(t *testing.T) {
	kv := setupRedisKV(t)
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "grad_plan_chatbot_a", "1"))
	require.NoError(t, kv.Set(ctx, "grad_plan_chatbot_b", "2"))
	require.NoError(t, kv.Set(ctx, "grad_plan_conversations", "[]"))

	v, ok, err := kv.Get(ctx, "grad_plan_chatbot_a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	keys, err := kv.Keys(ctx, "grad_plan_chatbot_")
	require.NoError(t, err)
	assert.Equal(t, []string{"grad_plan_chatbot_a", "grad_plan_chatbot_b"}, keys)

	require.NoError(t, kv.Remove(ctx, "grad_plan_chatbot_a"))
	_, ok, err = kv.Get(ctx, "grad_plan_chatbot_a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
	assert.Equal(t, "plain_key:", escapeGlob("plain_key:"))
}
