package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	credits "github.com/goliatone/go-credits"
	glog "github.com/goliatone/go-logger/glog"
)

type RouterOption func(*routerOptions)

type routerOptions struct {
	logger   glog.Logger
	basePath string
}

func WithLogger(logger glog.Logger) RouterOption {
	return func(o *routerOptions) {
		o.logger = logger
	}
}

// WithBasePath mounts every route under path, e.g. "/api/v1".
func WithBasePath(path string) RouterOption {
	return func(o *routerOptions) {
		o.basePath = path
	}
}

func NewRouter(facade *credits.Facade, opts ...RouterOption) (*gin.Engine, error) {
	if facade == nil {
		return nil, fmt.Errorf("api: facade is required")
	}
	cfg := routerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	logger := glog.Ensure(cfg.logger)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewHandler(facade).RegisterRoutes(router.Group(cfg.basePath))
	return router, nil
}

func requestLogger(logger glog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		args := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"caller", callerFrom(c),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.WithContext(c.Request.Context()).Error("credits api request failed", args...)
			return
		}
		logger.WithContext(c.Request.Context()).Info("credits api request", args...)
	}
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
