package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func newTestJWTService(t *testing.T) *JWTService {
	t.Helper()
	svc, err := NewJWTService(JWTConfig{
		Secret:     "test-secret-key-for-unit-tests",
		Issuer:     "loanbook-test",
		Expiration: 15 * time.Minute,
	})
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService(t)

	token, err := svc.GenerateToken("ops@example.com", []string{RoleOperator})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, []string{RoleOperator}, claims.Roles)
	assert.True(t, claims.HasAnyRole(RoleAdmin, RoleOperator))
	assert.False(t, claims.HasAnyRole(RoleAuditor))
}

func TestValidateToken_Rejects(t *testing.T) {
	svc := newTestJWTService(t)

	t.Run("expired", func(t *testing.T) {
		expired, err := NewJWTService(JWTConfig{Secret: "test-secret-key-for-unit-tests", Issuer: "loanbook-test", Expiration: -time.Minute})
		require.NoError(t, err)
		token, err := expired.GenerateToken("u", nil)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewJWTService(JWTConfig{Secret: "another-secret", Issuer: "loanbook-test", Expiration: time.Minute})
		require.NoError(t, err)
		token, err := other.GenerateToken("u", nil)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other, err := NewJWTService(JWTConfig{Secret: "test-secret-key-for-unit-tests", Issuer: "someone-else", Expiration: time.Minute})
		require.NoError(t, err)
		token, err := other.GenerateToken("u", nil)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestNewJWTService_Config(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	assert.Error(t, err)

	_, err = NewJWTService(JWTConfig{PublicKeyPEM: "not pem"})
	assert.Error(t, err)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	svc, err := NewJWTService(JWTConfig{PublicKeyPEM: string(pubPEM)})
	require.NoError(t, err)
	_, err = svc.GenerateToken("u", nil)
	assert.Error(t, err, "validation-only mode cannot mint tokens")
}

func TestUnaryAuthInterceptor(t *testing.T) {
	svc := newTestJWTService(t)
	interceptor := UnaryAuthInterceptor(svc, []string{"/grpc.health.v1.Health/Check"})

	var seen *Claims
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = ClaimsFromContext(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/loanbook.v1.LoanBookService/GetLoan"}

	t.Run("skipped method", func(t *testing.T) {
		_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, handler)
		require.NoError(t, err)
	})

	t.Run("missing header", func(t *testing.T) {
		ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
		_, err := interceptor(ctx, nil, info, handler)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("valid bearer", func(t *testing.T) {
		token, err := svc.GenerateToken("auditor-1", []string{RoleAuditor})
		require.NoError(t, err)
		ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))

		_, err = interceptor(ctx, nil, info, handler)
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, "auditor-1", seen.Subject)
	})
}

func TestRequireAnyRole(t *testing.T) {
	assert.Equal(t, codes.Unauthenticated, status.Code(RequireAnyRole(context.Background(), RoleAdmin)))

	ctx := ContextWithClaims(context.Background(), &Claims{Roles: []string{RoleAuditor}})
	assert.Equal(t, codes.PermissionDenied, status.Code(RequireAnyRole(ctx, RoleAdmin, RoleOperator)))
	assert.NoError(t, RequireAnyRole(ctx, RoleAuditor))
}
