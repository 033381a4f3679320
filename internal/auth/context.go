package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const (
	ctxToken ctxKey = iota
	ctxAPIClient
)

const (
	ginKeyToken     = "auth_token"
	ginKeyAPIClient = "api_client"
)

func WithToken(ctx context.Context, t AuthToken) context.Context {
	return context.WithValue(ctx, ctxToken, t)
}

func TokenFrom(ctx context.Context) (AuthToken, error) {
	if t, ok := ctx.Value(ctxToken).(AuthToken); ok && !t.IsZero() {
		return t, nil
	}
	return AuthToken{}, errors.New("auth token not in context")
}

// WithAPIClient records the application name of a request admitted by API key.
func WithAPIClient(ctx context.Context, appName string) context.Context {
	return context.WithValue(ctx, ctxAPIClient, appName)
}

func APIClientFrom(ctx context.Context) (string, error) {
	if s, ok := ctx.Value(ctxAPIClient).(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("api client not in context")
}

// TokenFromGin reads the token the guard stored on the gin context.
func TokenFromGin(c *gin.Context) (AuthToken, bool) {
	v, ok := c.Get(ginKeyToken)
	if !ok {
		return AuthToken{}, false
	}
	t, ok := v.(AuthToken)
	return t, ok
}

func APIClientFromGin(c *gin.Context) (string, bool) {
	return c.GetString(ginKeyAPIClient), c.GetString(ginKeyAPIClient) != ""
}
