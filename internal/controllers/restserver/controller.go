package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/sensorpipe/internal/engine"
	"github.com/chrissnell/sensorpipe/internal/log"
	"github.com/chrissnell/sensorpipe/internal/storage"
	"github.com/chrissnell/sensorpipe/internal/types"
	"github.com/chrissnell/sensorpipe/pkg/config"
)

// RunTracker gives access to the most recent pipeline run
type RunTracker interface {
	LatestRun() (*types.RunSummary, bool)
}

// Deps are the collaborators the handlers read from
type Deps struct {
	Engine  *engine.Engine
	Runs    RunTracker
	Health  *storage.HealthManager
	Metrics http.Handler
}

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	deps       Deps
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.RESTServerData, deps Deps, logger *zap.SugaredLogger) (*Controller, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("REST server requires a pipeline engine")
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		deps:       deps,
		logger:     logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	if rc.Port == 0 {
		logger.Infof("rest.port not provided; defaulting to %d", config.DefaultRESTPort)
		rc.Port = config.DefaultRESTPort
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// Handler returns the router wrapped in recovery and access logging
func (c *Controller) Handler() http.Handler {
	router := c.setupRouter()
	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(log.RecoveryLogger{}), handlers.PrintRecoveryStack(true))
	return handlers.LoggingHandler(log.HTTPAccessWriter(), recovery(router))
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/process", c.handlers.Process).Methods("POST")
	api.HandleFunc("/reading-types", c.handlers.GetReadingTypes).Methods("GET")
	api.HandleFunc("/runs/latest", c.handlers.GetLatestRun).Methods("GET")

	router.HandleFunc("/healthz", c.handlers.Healthz).Methods("GET")
	if c.deps.Metrics != nil {
		router.Handle("/metrics", c.deps.Metrics).Methods("GET")
	}

	return router
}
