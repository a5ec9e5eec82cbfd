package http_test

import (
	"context"
	"fmt"
	"time"

	httpserver "github.com/fyrsmithlabs/roadwatch/internal/http"
	"github.com/fyrsmithlabs/roadwatch/internal/scheduler"
	"github.com/fyrsmithlabs/roadwatch/internal/store"
	"go.uber.org/zap"
)

type noRefresh struct{}

func (noRefresh) Refresh(context.Context, scheduler.Key) error { return nil }
func (noRefresh) Focus(context.Context) error                  { return nil }

// ExampleServer demonstrates how to create and stop the read API.
func ExampleServer() {
	logger := zap.NewNop()

	server, err := httpserver.NewServer(store.New(logger), noRefresh{}, nil, logger, &httpserver.Config{
		Host: "127.0.0.1",
		Port: 0,
	})
	if err != nil {
		panic(err)
	}

	go func() {
		_ = server.Start()
	}()
	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
