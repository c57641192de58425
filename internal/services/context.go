package services

import "context"

type contextKey string

const (
	chunkKey     contextKey = "chunk"
	videoIDKey   contextKey = "video_id"
	requestIDKey contextKey = "request_id"
)

// WithChunk annotates context with the chunk name being processed.
func WithChunk(ctx context.Context, chunk string) context.Context {
	if chunk == "" {
		return ctx
	}
	return context.WithValue(ctx, chunkKey, chunk)
}

// ChunkFromContext returns the chunk name if present.
func ChunkFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(chunkKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithVideoID annotates context with the video identifier being processed.
func WithVideoID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, videoIDKey, id)
}

// VideoIDFromContext returns the video identifier if present.
func VideoIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(videoIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
