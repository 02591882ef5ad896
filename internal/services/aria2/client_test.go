package aria2_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"grabarr/internal/services"
	"grabarr/internal/services/aria2"
)

type rpcCall struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

func newRPCServer(t *testing.T, handler func(call rpcCall) (any, map[string]any)) (*httptest.Server, *[]rpcCall) {
	t.Helper()
	var calls []rpcCall
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode rpc call: %v", err)
			return
		}
		calls = append(calls, call)

		result, rpcErr := handler(call)
		response := map[string]any{"jsonrpc": "2.0", "id": "1"}
		if rpcErr != nil {
			response["error"] = rpcErr
		} else {
			response["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Errorf("encode rpc response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestAddURISendsSecretToken(t *testing.T) {
	server, calls := newRPCServer(t, func(call rpcCall) (any, map[string]any) {
		return "gid-abc", nil
	})

	client := aria2.New(server.URL, "hunter2", server.Client())
	gid, err := client.AddURI(context.Background(), "magnet:?xt=abc", "/downloads")
	if err != nil {
		t.Fatalf("AddURI returned error: %v", err)
	}
	if gid != "gid-abc" {
		t.Fatalf("gid = %q", gid)
	}

	if len(*calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(*calls))
	}
	call := (*calls)[0]
	if call.Method != "aria2.addUri" {
		t.Fatalf("method = %q", call.Method)
	}
	if len(call.Params) < 2 {
		t.Fatalf("params = %v", call.Params)
	}
	if token, ok := call.Params[0].(string); !ok || token != "token:hunter2" {
		t.Fatalf("first param should be secret token, got %v", call.Params[0])
	}
}

func TestTellStatusProgress(t *testing.T) {
	server, _ := newRPCServer(t, func(call rpcCall) (any, map[string]any) {
		return map[string]any{
			"gid":             "gid-1",
			"status":          "active",
			"totalLength":     "1000",
			"completedLength": "250",
		}, nil
	})

	client := aria2.New(server.URL, "", server.Client())
	status, err := client.TellStatus(context.Background(), "gid-1")
	if err != nil {
		t.Fatalf("TellStatus returned error: %v", err)
	}
	if status.Complete() || status.Failed() {
		t.Fatalf("active transfer misclassified: %+v", status)
	}
	if got := status.Progress(); got != 25 {
		t.Fatalf("progress = %v, want 25", got)
	}
}

func TestRemoveUnknownGIDMapsToNotFound(t *testing.T) {
	server, _ := newRPCServer(t, func(call rpcCall) (any, map[string]any) {
		return nil, map[string]any{"code": 1, "message": "GID gid-gone is not found"}
	})

	client := aria2.New(server.URL, "", server.Client())
	err := client.Remove(context.Background(), "gid-gone")
	if !errors.Is(err, aria2.ErrGIDNotFound) {
		t.Fatalf("expected ErrGIDNotFound, got %v", err)
	}
}

func TestRPCErrorIsTransient(t *testing.T) {
	server, _ := newRPCServer(t, func(call rpcCall) (any, map[string]any) {
		return nil, map[string]any{"code": 6, "message": "network problem"}
	})

	client := aria2.New(server.URL, "", server.Client())
	_, err := client.Version(context.Background())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !services.Retryable(err) {
		t.Fatal("rpc error should be retryable")
	}
}

func TestUnreachableEngineIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client := aria2.New(server.URL, "", http.DefaultClient)
	_, err := client.Version(context.Background())
	if !errors.Is(err, services.ErrUnavailable) {
		t.Fatalf("expected unavailable marker, got %v", err)
	}
}

func TestAuthRejectionIsAuthenticationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	client := aria2.New(server.URL, "wrong", server.Client())
	_, err := client.Version(context.Background())
	if !errors.Is(err, services.ErrAuthentication) {
		t.Fatalf("expected authentication marker, got %v", err)
	}
}
