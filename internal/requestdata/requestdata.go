package requestdata

import (
	"context"

	"github.com/google/uuid"
)

type contextKey struct{}

// RequestData is the per-request identity resolved by the auth middleware.
type RequestData struct {
	UserID  uuid.UUID
	TokenID uuid.UUID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, contextKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	rd, _ := ctx.Value(contextKey{}).(*RequestData)
	return rd
}
