package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestServer_ServesAndShutsDown(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := NewServer(handler, WithShutdownTimeout(2*time.Second), WithServerLogger(slog.Default()))
	go srv.ServeOn(ln)
	time.Sleep(50 * time.Millisecond)

	url := fmt.Sprintf("http://%s/", ln.Addr())
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Errorf("shutdown: %v", err)
	}

	if _, err := http.Get(url); err == nil {
		t.Error("server still accepting connections after shutdown")
	}
}

func TestServer_Options(t *testing.T) {
	logger := slog.Default()
	srv := NewServer(http.NotFoundHandler(),
		WithAddr(":9999"),
		WithReadTimeout(5*time.Second),
		WithWriteTimeout(10*time.Second),
		WithShutdownTimeout(15*time.Second),
		WithServerLogger(logger),
	)

	if srv.config.Addr != ":9999" {
		t.Errorf("addr = %q, want :9999", srv.config.Addr)
	}
	if srv.config.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v, want 5s", srv.config.ReadTimeout)
	}
	if srv.config.WriteTimeout != 10*time.Second {
		t.Errorf("write timeout = %v, want 10s", srv.config.WriteTimeout)
	}
	if srv.config.ShutdownTimeout != 15*time.Second {
		t.Errorf("shutdown timeout = %v, want 15s", srv.config.ShutdownTimeout)
	}
	if srv.httpServer.ReadTimeout != 5*time.Second {
		t.Error("read timeout not applied to the underlying server")
	}
}

func TestServer_Defaults(t *testing.T) {
	srv := NewServer(http.NotFoundHandler())
	def := DefaultServerConfig()

	if srv.config.Addr != def.Addr {
		t.Errorf("addr = %q, want default %q", srv.config.Addr, def.Addr)
	}
	if srv.config.ShutdownTimeout != def.ShutdownTimeout {
		t.Errorf("shutdown timeout = %v, want default %v", srv.config.ShutdownTimeout, def.ShutdownTimeout)
	}
}
