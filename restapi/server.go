// Package restapi surfaces the tree engine and the lock manager over HTTP.
package restapi

import (
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerfiles "github.com/swaggo/files"     // swagger embed files
	ginSwagger "github.com/swaggo/gin-swagger" // gin-swagger middleware
	"golang.org/x/sync/errgroup"

	"github.com/SharedCode/treestore"
	"github.com/SharedCode/treestore/lock"
	"github.com/SharedCode/treestore/restapi/docs"
	"github.com/SharedCode/treestore/tree"
)

// RequestIDHeader carries the id assigned to every request.
const RequestIDHeader = "X-Request-Id"

// Config wires a Server.
type Config struct {
	Trees *tree.Store
	Locks *lock.Manager
	Auth  *Authenticator
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
}

// Server holds the registered REST methods and their collaborators.
type Server struct {
	trees    *tree.Store
	locks    *lock.Manager
	auth     *Authenticator
	gatherer prometheus.Gatherer
	methods  map[string]RestMethod
}

// @BasePath /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// New returns a Server with the tree and lock methods registered.
func New(c Config) *Server {
	s := &Server{
		trees:    c.Trees,
		locks:    c.Locks,
		auth:     c.Auth,
		gatherer: c.Gatherer,
		methods:  make(map[string]RestMethod),
	}
	if s.auth == nil {
		s.auth = AuthenticatorFromEnv()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	s.registerTrees()
	if s.locks != nil {
		s.registerLocks()
	}
	return s
}

func requestID(c *gin.Context) {
	id := c.GetHeader(RequestIDHeader)
	if id == "" {
		id = treestore.NewOperationID()
	}
	c.Header(RequestIDHeader, id)
	c.Next()
}

// Router builds the gin engine serving /api/v1, /metrics and /swagger.
func (s *Server) Router() *gin.Engine {
	// Simple closure for header token verification.
	verifyHeaderToken := func(realHandler gin.HandlerFunc) gin.HandlerFunc {
		return func(c *gin.Context) {
			if s.auth.verify(c) {
				realHandler(c)
			}
		}
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID)
	docs.SwaggerInfo.BasePath = "/api/v1"

	s.mount(router.Group("/api/v1"), verifyHeaderToken)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))
	return router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info("rest api listening", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})
	return eg.Wait()
}
