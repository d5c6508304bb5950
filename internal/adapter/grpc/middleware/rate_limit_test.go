package middleware

import (
	"context"
	"net"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"user-api/pkg/ratelimit"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

func newInterceptor(t *testing.T, client *redis.Client, cfg ratelimit.Config) grpc.UnaryServerInterceptor {
	return NewRateLimiter(ratelimit.New(client, cfg), zaptest.NewLogger(t)).UnaryInterceptor()
}

func peerContext(t *testing.T, addr string) context.Context {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	require.NoError(t, err)
	return peer.NewContext(context.Background(), &peer.Peer{Addr: tcp})
}

// mockHandler is a simple handler that returns nil
func mockHandler(ctx context.Context, req any) (any, error) {
	return "success", nil
}

var checkInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestRateLimiter_WithinLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 10,
		BurstCapacity:     10,
		Enabled:           true,
	})
	ctx := peerContext(t, "127.0.0.1:12345")

	for i := 0; i < 5; i++ {
		resp, err := interceptor(ctx, nil, checkInfo, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	}
}

func TestRateLimiter_ExceedLimit(t *testing.T) {
	client, _ := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 1,
		BurstCapacity:     5,
		Enabled:           true,
	})
	ctx := peerContext(t, "127.0.0.1:12345")

	for i := 0; i < 5; i++ {
		_, err := interceptor(ctx, nil, checkInfo, mockHandler)
		require.NoError(t, err)
	}

	resp, err := interceptor(ctx, nil, checkInfo, mockHandler)
	require.Error(t, err)
	assert.Nil(t, resp)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
	assert.Contains(t, st.Message(), "rate limit exceeded")
}

func TestRateLimiter_Disabled(t *testing.T) {
	client, _ := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 1,
		BurstCapacity:     1,
		Enabled:           false,
	})
	ctx := peerContext(t, "127.0.0.1:12345")

	for i := 0; i < 10; i++ {
		resp, err := interceptor(ctx, nil, checkInfo, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	}
}

func TestRateLimiter_NilLimiter(t *testing.T) {
	interceptor := NewRateLimiter(nil, zaptest.NewLogger(t)).UnaryInterceptor()

	resp, err := interceptor(context.Background(), nil, checkInfo, mockHandler)
	require.NoError(t, err)
	assert.Equal(t, "success", resp)
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	client, _ := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 1,
		BurstCapacity:     2,
		Enabled:           true,
	})

	ctx1 := peerContext(t, "192.168.1.1:12345")
	for i := 0; i < 2; i++ {
		_, err := interceptor(ctx1, nil, checkInfo, mockHandler)
		require.NoError(t, err)
	}
	_, err := interceptor(ctx1, nil, checkInfo, mockHandler)
	require.Error(t, err)

	resp, err := interceptor(peerContext(t, "192.168.1.2:12345"), nil, checkInfo, mockHandler)
	require.NoError(t, err)
	assert.Equal(t, "success", resp)
}

func TestRateLimiter_SameHostDifferentPorts(t *testing.T) {
	client, _ := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 1,
		BurstCapacity:     1,
		Enabled:           true,
	})

	_, err := interceptor(peerContext(t, "10.0.0.1:1111"), nil, checkInfo, mockHandler)
	require.NoError(t, err)

	_, err = interceptor(peerContext(t, "10.0.0.1:2222"), nil, checkInfo, mockHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimiter_XForwardedFor(t *testing.T) {
	client, mr := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 5,
		BurstCapacity:     10,
		Enabled:           true,
	})

	md := metadata.Pairs("x-forwarded-for", "203.0.113.1")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	for i := 0; i < 3; i++ {
		resp, err := interceptor(ctx, nil, checkInfo, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	}

	assert.True(t, mr.Exists("ratelimit:tb:/grpc.health.v1.Health/Check:203.0.113.1"))
}

func TestRateLimiter_DifferentMethods(t *testing.T) {
	client, _ := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 1,
		BurstCapacity:     1,
		Enabled:           true,
	})
	ctx := peerContext(t, "127.0.0.1:12345")

	_, err := interceptor(ctx, nil, checkInfo, mockHandler)
	require.NoError(t, err)

	watch := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/List"}
	resp, err := interceptor(ctx, nil, watch, mockHandler)
	require.NoError(t, err)
	assert.Equal(t, "success", resp)
}

func TestRateLimiter_BucketTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 2,
		BurstCapacity:     4,
		Enabled:           true,
	})
	ctx := peerContext(t, "127.0.0.1:12345")

	_, err := interceptor(ctx, nil, checkInfo, mockHandler)
	require.NoError(t, err)

	ttl := mr.TTL("ratelimit:tb:/grpc.health.v1.Health/Check:127.0.0.1")
	assert.Greater(t, ttl.Seconds(), 0.0)
	assert.LessOrEqual(t, ttl.Seconds(), 60.0)
}

func TestRateLimiter_RedisDownFailsOpen(t *testing.T) {
	client, mr := setupTestRedis(t)
	interceptor := newInterceptor(t, client, ratelimit.Config{
		RequestsPerSecond: 1,
		BurstCapacity:     1,
		Enabled:           true,
	})
	mr.Close()

	for i := 0; i < 3; i++ {
		resp, err := interceptor(peerContext(t, "127.0.0.1:1"), nil, checkInfo, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	}
}
