package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"strings"

	"connectrpc.com/connect"
)

// jsonCodec lets connect carry plain go structs, the messages of this service are not
// generated from protobuf.
type jsonCodec struct{}

func (jsonCodec) Name() string {
	return "json"
}

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

type authInterceptor = func(ctx context.Context, token string) (context.Context, error)

type genericAuthInterceptor struct {
	fn authInterceptor
}

func newGenericAuthInterceptor(fn authInterceptor) genericAuthInterceptor {
	return genericAuthInterceptor{fn: fn}
}

func (a genericAuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		var err error
		ctx, err = a.fn(ctx, req.Header().Get("Authorization"))
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (a genericAuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (a genericAuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, shc connect.StreamingHandlerConn) error {
		var err error
		ctx, err = a.fn(ctx, shc.RequestHeader().Get("Authorization"))
		if err != nil {
			return err
		}
		return next(ctx, shc)
	}
}

var errUnauthorized = errors.New("unauthorized")

type operatorCtxKeyType struct{}

var operatorCtxKey operatorCtxKeyType

// accessTokenAuth accepts requests that carry "Bearer <accessToken>". An empty access
// token rejects every request.
func accessTokenAuth(accessToken string) authInterceptor {
	return func(ctx context.Context, header string) (context.Context, error) {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || accessToken == "" {
			return ctx, connect.NewError(connect.CodeUnauthenticated, errUnauthorized)
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(accessToken)) != 1 {
			return ctx, connect.NewError(connect.CodeUnauthenticated, errUnauthorized)
		}
		return context.WithValue(ctx, operatorCtxKey, true), nil
	}
}

// bearerToken attaches the access token to outgoing requests.
func bearerToken(accessToken string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient && accessToken != "" {
				req.Header().Set("Authorization", "Bearer "+accessToken)
			}
			return next(ctx, req)
		}
	}
}
