package auth

import (
	"context"

	"google.golang.org/grpc/metadata"
)

type ctxKey struct{}

// UserContext is the identity the login gateway vouched for.
type UserContext struct {
	UserID string
	Email  string
}

func WithUser(ctx context.Context, u UserContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// GetUserID returns the authenticated user, falling back to the x-user-id gRPC metadata
// set by the gateway. It is empty for anonymous calls.
func GetUserID(ctx context.Context) string {
	if u, ok := ctx.Value(ctxKey{}).(UserContext); ok {
		return u.UserID
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get("x-user-id"); len(val) > 0 {
			return val[0]
		}
	}
	return ""
}

// CreatedBy is GetUserID as a nullable column value.
func CreatedBy(ctx context.Context) *string {
	if id := GetUserID(ctx); id != "" {
		return &id
	}
	return nil
}
