// Package interceptor provides gRPC server interceptors shared by the
// internal services.
package interceptor

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/neighborly/directory-api/services/auth-service/pkg/types"
	"github.com/neighborly/directory-api/shared/auth"
)

type contextKey struct{}

// UserClaimsKey is the context key under which validated access-token
// claims are stored for downstream handlers.
var UserClaimsKey = contextKey{}

// ClaimsFromContext returns the access-token claims attached by the
// interceptor, or nil when the method was exempt.
func ClaimsFromContext(ctx context.Context) *types.AccessTokenClaims {
	claims, _ := ctx.Value(UserClaimsKey).(*types.AccessTokenClaims)
	return claims
}

// NewJWTInterceptor authenticates unary calls with a bearer access token.
// Methods in exemptMethods pass through unauthenticated.
func NewJWTInterceptor(
	jwtAuth auth.JWTAuthenticator,
	secret string,
	exemptMethods []string,
) grpc.UnaryServerInterceptor {
	exemptMap := make(map[string]bool)
	for _, method := range exemptMethods {
		exemptMap[method] = true
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if exemptMap[info.FullMethod] {
			return handler(ctx, req)
		}

		claims, err := extractAndValidateJWT(ctx, jwtAuth, secret)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		ctx = context.WithValue(ctx, UserClaimsKey, claims)

		return handler(ctx, req)
	}
}

func extractAndValidateJWT(ctx context.Context, jwtAuth auth.JWTAuthenticator, secret string) (*types.AccessTokenClaims, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errors.New("missing metadata")
	}

	authHeaders := md.Get("Authorization")
	if len(authHeaders) == 0 {
		return nil, errors.New("missing authorization header")
	}

	parts := strings.SplitN(authHeaders[0], " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, errors.New("invalid authorization header format")
	}

	claims := &types.AccessTokenClaims{}
	if err := jwtAuth.ValidateTokenWithClaims(parts[1], secret, claims); err != nil {
		return nil, err
	}

	return claims, nil
}
