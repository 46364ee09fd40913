package auth

import "context"

type contextKey struct{}

// AuthContext identifies the signed-in user for the lifetime of a request.
type AuthContext struct {
	UserID    int64
	FirstName string
	IsAdmin   bool
	SessionID int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func UserID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.UserID
}

// FirstName returns the signed-in user's name, used to stamp task creators.
func FirstName(ctx context.Context) string {
	ac, _ := FromContext(ctx)
	return ac.FirstName
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.IsAdmin
}
