package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/intertext-cli/internal/core/domain"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Server is the MCP server for intertext.
type Server struct {
	ports  *Ports
	prices domain.PriceTable
	server *mcp.Server
}

// NewServer creates a new MCP server with the given ports.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{
		Name:    "intertext",
		Version: Version,
	}

	prices := ports.Prices
	if prices == nil {
		prices = domain.DefaultPriceTable()
	}

	s := &Server{
		ports:  ports,
		prices: prices,
		server: mcp.NewServer(impl, nil),
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	stop := s.watchPrompts(ctx)
	defer stop()
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	stop := s.watchPrompts(ctx)
	defer stop()

	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// watchPrompts starts prompt hot reload when a watcher is configured.
// The returned func stops it and waits for the watcher to exit.
func (s *Server) watchPrompts(ctx context.Context) func() {
	if s.ports.Watcher == nil {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done, err := s.ports.Watcher.Watch(ctx, func(name string) {
		logger.Debug("MCP: prompt %q reloaded", name)
	})
	if err != nil {
		cancel()
		logger.Warn("Prompt hot reload disabled: %v", err)
		return func() {}
	}

	return func() {
		cancel()
		<-done
	}
}
