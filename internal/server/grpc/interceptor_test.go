package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/saveme/internal/common"
	"github.com/dmitrijs2005/saveme/internal/logging"
	pb "github.com/dmitrijs2005/saveme/internal/proto"
	"github.com/dmitrijs2005/saveme/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestServer(secret string) *Server {
	return NewServer("", logging.Nop(), nil, secret)
}

func TestInterceptor_PublicMethodSkipsToken(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(pb.MethodLogin)}

	called := false
	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_ExpiredToken(t *testing.T) {
	s := newTestServer("secret")
	token, err := auth.GenerateToken("u1", []byte("secret"), -time.Minute)
	require.NoError(t, err)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, token))
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(pb.MethodInbox)}

	_, err = s.accessTokenInterceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		t.Fatal("handler should not be called for an expired token")
		return nil, nil
	})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "token expired", status.Convert(err).Message())
}

func TestInterceptor_ValidTokenSetsUserID(t *testing.T) {
	s := newTestServer("super-secret")
	token, err := auth.GenerateToken("user-123", []byte("super-secret"), time.Hour)
	require.NoError(t, err)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, token))
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(pb.MethodInbox)}

	var got string
	_, err = s.accessTokenInterceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		got, _ = UserIDFromContext(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "user-123", got)
}

func TestRequestLogger_RecoversPanic(t *testing.T) {
	s := newTestServer("secret")
	info := &grpc.UnaryServerInfo{FullMethod: pb.FullMethod(pb.MethodPing)}

	_, err := s.requestLoggerInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestCaller(t *testing.T) {
	_, err := caller(context.Background(), "")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := context.WithValue(context.Background(), userIDKey, "u1")
	id, err := caller(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	id, err = caller(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = caller(ctx, "u2")
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestUserRateLimiter(t *testing.T) {
	now := time.Unix(0, 0)
	l := NewUserRateLimiter(2, time.Minute, 1, time.Hour).(*userRateLimiter)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("u1"))
	assert.False(t, l.Allow("u1"))
	assert.True(t, l.Allow("u2"), "keys are limited independently")

	now = now.Add(30 * time.Second)
	assert.True(t, l.Allow("u1"))

	now = now.Add(2 * time.Hour)
	l.Allow("u3")
	l.mu.Lock()
	_, kept := l.visitors["u1"]
	l.mu.Unlock()
	assert.False(t, kept, "idle visitors are collected")
}
