package middleware

import "context"

type contextKey string

const (
	ctxPrincipal contextKey = "principal"
	ctxGroups    contextKey = "groups"
)

// PrincipalFromContext returns the verified caller identity, if any.
func PrincipalFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxPrincipal).(string); ok {
		return v
	}
	return ""
}

// GroupsFromContext returns the verified caller's group claims.
func GroupsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxGroups).([]string); ok {
		return v
	}
	return nil
}

// WithPrincipal injects the caller identity into the context.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxPrincipal, principal)
}

// WithGroups injects the caller's group claims into the context.
func WithGroups(ctx context.Context, groups []string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxGroups, groups)
}
