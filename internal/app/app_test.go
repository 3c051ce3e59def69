package app

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"auth-core-service/internal/config"
)

func TestNewAssignsDependencies(t *testing.T) {
	cfg := &config.Config{HTTPAddr: ":8080"}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := &http.Server{Addr: cfg.HTTPAddr, ReadHeaderTimeout: time.Second}

	a := New(cfg, logger, server, nil)
	if a.Config != cfg || a.Logger != logger || a.Server != server {
		t.Fatal("expected app dependencies to be assigned")
	}
	if a.Observability != nil {
		t.Fatal("expected nil observability runtime to stay nil")
	}
}
