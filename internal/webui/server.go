package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// DefaultAddress is the listen address used when no address is configured.
	DefaultAddress = ":8712"

	readHeaderTimeoutConstant = 5 * time.Second

	missingRunsDirectoryMessageConstant = "web server requires a runs directory"
	alreadyStartedMessageConstant       = "web server already started"
	listenTemplateConstant              = "listen on %s: %w"
)

// Dependencies configures the read-only run inspection API.
type Dependencies struct {
	Logger        *zap.Logger
	RunsDirectory string
	Version       string
	Clock         func() time.Time
}

// Server publishes recorded analysis runs over HTTP. It only reads the runs
// directory; plans, results, and reports are produced by the pipeline.
type Server struct {
	dependencies Dependencies
	inventory    *RunInventory
	engine       *gin.Engine

	mutex      sync.Mutex
	listener   net.Listener
	httpServer *http.Server
}

// NewServer validates the configuration and prepares the route table.
func NewServer(dependencies Dependencies) (*Server, error) {
	if len(strings.TrimSpace(dependencies.RunsDirectory)) == 0 {
		return nil, errors.New(missingRunsDirectoryMessageConstant)
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Clock == nil {
		dependencies.Clock = time.Now
	}
	gin.SetMode(gin.ReleaseMode)
	server := &Server{
		dependencies: dependencies,
		inventory:    NewRunInventory(dependencies.RunsDirectory),
		engine:       gin.New(),
	}
	server.engine.Use(gin.Recovery(), server.requestLogger())
	server.registerRoutes()
	return server, nil
}

// Start binds the listen address and serves requests in the background. An
// empty address falls back to DefaultAddress.
func (server *Server) Start(listenAddress string) error {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if server.listener != nil {
		return errors.New(alreadyStartedMessageConstant)
	}
	address := strings.TrimSpace(listenAddress)
	if len(address) == 0 {
		address = DefaultAddress
	}
	boundListener, listenError := net.Listen("tcp", address)
	if listenError != nil {
		return fmt.Errorf(listenTemplateConstant, address, listenError)
	}
	server.listener = boundListener
	server.httpServer = &http.Server{
		Handler:           server.engine,
		ReadHeaderTimeout: readHeaderTimeoutConstant,
	}
	startedServer := server.httpServer
	logger := server.dependencies.Logger
	go func() {
		serveError := startedServer.Serve(boundListener)
		if serveError != nil && !errors.Is(serveError, http.ErrServerClosed) {
			logger.Error("web_server_serve_failed", zap.Error(serveError))
		}
	}()
	logger.Info(
		"web_server_started",
		zap.String("address", boundListener.Addr().String()),
		zap.String("runs_directory", server.dependencies.RunsDirectory),
	)
	return nil
}

// Shutdown stops accepting connections and drains in-flight requests.
func (server *Server) Shutdown(shutdownContext context.Context) error {
	server.mutex.Lock()
	runningServer := server.httpServer
	server.httpServer = nil
	server.listener = nil
	server.mutex.Unlock()
	if runningServer == nil {
		return nil
	}
	shutdownError := runningServer.Shutdown(shutdownContext)
	server.dependencies.Logger.Info("web_server_stopped")
	return shutdownError
}

// Address reports the bound listen address once Start has succeeded.
func (server *Server) Address() string {
	server.mutex.Lock()
	defer server.mutex.Unlock()
	if server.listener == nil {
		return ""
	}
	return server.listener.Addr().String()
}

// Handler exposes the route table for tests and embedding.
func (server *Server) Handler() http.Handler {
	return server.engine
}

func (server *Server) requestLogger() gin.HandlerFunc {
	return func(requestContext *gin.Context) {
		startTime := server.dependencies.Clock()
		requestContext.Next()
		server.dependencies.Logger.Info(
			"http_request_handled",
			zap.String("http_method", requestContext.Request.Method),
			zap.String("path", requestContext.Request.URL.Path),
			zap.Int("status_code", requestContext.Writer.Status()),
			zap.Duration("elapsed", server.dependencies.Clock().Sub(startTime)),
		)
	}
}
