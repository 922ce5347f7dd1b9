package auth

import (
	"context"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/victornm/codexa/internal/errors"
)

// Middleware authenticates requests carrying a bearer token. Requests without one pass through
// anonymously; capability checks happen in the handlers.
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := v.VerifyHeader(c.GetHeader("Authorization"))
		if err != nil {
			e := errors.Convert(err)
			c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
			return
		}

		if claims != nil {
			c.Request = c.Request.WithContext(NewContext(c.Request.Context(), claims))
		}

		c.Next()
	}
}

// UnaryServerInterceptor is the gRPC counterpart of Middleware, reading the "authorization" metadata.
func (v *Verifier) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get("authorization"); len(vals) > 0 {
				header = vals[0]
			}
		}

		claims, err := v.VerifyHeader(header)
		if err != nil {
			return nil, err
		}

		if claims != nil {
			ctx = NewContext(ctx, claims)
		}

		return handler(ctx, req)
	}
}
