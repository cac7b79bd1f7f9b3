package interceptor

import (
	"context"
	"time"

	"chronobank/internal/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

// Unary returns a server interceptor that logs every unary RPC and turns a
// handler panic into codes.Internal.
func Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		started := time.Now()
		requestID := extractRequestID(ctx)

		defer func() {
			if r := recover(); r != nil {
				logger.ErrorContext(ctx, "RPC handler panicked", "method", info.FullMethod, "requestID", requestID, "panic", r)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
			code := status.Code(err)
			args := []any{"method", info.FullMethod, "code", code.String(), "duration_ms", time.Since(started).Milliseconds()}
			if requestID != "" {
				args = append(args, "requestID", requestID)
			}
			if code == codes.OK {
				logger.Debug("RPC handled", args...)
			} else {
				logger.Warn("RPC failed", append(args, "error", err)...)
			}
		}()

		return handler(ctx, req)
	}
}

func extractRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(requestIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}
