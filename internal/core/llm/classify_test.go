package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/markdave123-py/smartdoc/internal/core"
)

func grpcAPIError(t *testing.T, code codes.Code, msg string) error {
	t.Helper()
	ae, ok := apierror.FromError(status.Error(code, msg))
	if !ok {
		t.Fatalf("apierror.FromError(%v) not ok", code)
	}
	return ae
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"grpc unauthenticated", grpcAPIError(t, codes.Unauthenticated, "bad key"), core.ErrAuth},
		{"grpc permission denied", grpcAPIError(t, codes.PermissionDenied, "no access"), core.ErrAuth},
		{"grpc resource exhausted", grpcAPIError(t, codes.ResourceExhausted, "quota"), core.ErrRateLimit},
		{"grpc unavailable", grpcAPIError(t, codes.Unavailable, "down"), core.ErrTransport},
		{"invalid api key message", status.Error(codes.InvalidArgument, "API key not valid. Please pass a valid API key."), core.ErrAuth},
		{"wrapped status", fmt.Errorf("call: %w", status.Error(codes.ResourceExhausted, "slow down")), core.ErrRateLimit},
		{"googleapi 401", &googleapi.Error{Code: 401}, core.ErrAuth},
		{"googleapi 429", &googleapi.Error{Code: 429}, core.ErrRateLimit},
		{"googleapi 500", &googleapi.Error{Code: 500}, core.ErrTransport},
		{"plain network error", errors.New("dial tcp 127.0.0.1:443: connect: connection refused"), core.ErrTransport},
		{"deadline", context.DeadlineExceeded, core.ErrTransport},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := kindOf(tc.err); got != tc.want {
				t.Errorf("kindOf = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGeminiClassifyKeepsCause(t *testing.T) {
	g := NewGeminiLLM(GenerationConfig{}, "")
	cause := grpcAPIError(t, codes.ResourceExhausted, "quota")

	err := g.classify("key", cause)
	if !errors.Is(err, core.ErrRateLimit) {
		t.Fatalf("err = %v, want ErrRateLimit", err)
	}
	var ae *apierror.APIError
	if !errors.As(err, &ae) {
		t.Errorf("provider error not reachable through errors.As")
	}
}

func TestGeminiMissingKey(t *testing.T) {
	g := NewGeminiLLM(GenerationConfig{Model: "gemini-1.5-flash"}, "")
	defer g.Close()

	_, err := g.Generate(context.Background(), "", "prompt")
	if !errors.Is(err, core.ErrAuth) {
		t.Fatalf("err = %v, want ErrAuth", err)
	}
}

func TestGeminiKeepsOnlySharedClient(t *testing.T) {
	g := NewGeminiLLM(GenerationConfig{}, "server-key", option.WithEndpoint("127.0.0.1:1"))
	defer g.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 50; i++ {
		if _, err := g.Generate(ctx, fmt.Sprintf("user-key-%d", i), "prompt"); err == nil {
			t.Fatal("expected an error with a cancelled context")
		}
	}
	if n := g.cached(); n != 0 {
		t.Fatalf("cached clients after 50 session keys = %d, want 0", n)
	}

	_, _ = g.Generate(ctx, "server-key", "prompt")
	_, _ = g.Generate(ctx, "server-key", "prompt")
	if n := g.cached(); n > 1 {
		t.Errorf("cached clients = %d, want at most 1", n)
	}
}
