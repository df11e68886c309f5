package container

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/fieldjob/internal/application/dispatcher"
	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/application/workflow"
	"github.com/garyjia/fieldjob/internal/infrastructure/external/jobapi"
	"github.com/garyjia/fieldjob/internal/infrastructure/messaging/natsbus"
	"github.com/garyjia/fieldjob/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fieldjob/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and close in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	sqlDB        *sql.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Infrastructure - External
	jobAPI    *jobapi.Client
	publisher *natsbus.Publisher

	// Application
	dispatcher dispatcher.Dispatcher
	engine     workflow.VisitEngine

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations and repositories
// 2. Job API client
// 3. NATS event bridge
// 4. Dispatcher and visit engine
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initJobAPI(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize job API client: %w", err)
	}
	c.logger.Info("Job API client initialized")

	if err := c.initMessaging(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize messaging: %w", err)
	}

	if err := c.initDispatcherAndEngine(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize visit engine: %w", err)
	}
	c.logger.Info("Dispatcher and visit engine initialized")

	if err := c.initWorkers(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever was initialized, newest first
func (c *Container) teardown() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	// open visits persist their final snapshot through the dispatcher
	if c.engine != nil {
		if err := c.engine.Shutdown(context.Background()); err != nil {
			c.logger.Error("Failed to shut down visit engine", zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown engine: %w", err))
		}
		c.engine = nil
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
		c.dispatcher = nil
	}

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.logger.Error("Failed to close NATS publisher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
		c.publisher = nil
	}

	if c.sqlDB != nil {
		if err := c.sqlDB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.sqlDB = nil
	}

	return errs
}

// Ready returns true when all components are initialized
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.sqlDB == nil:
		set("database", false, "not initialized")
	default:
		if err := c.sqlDB.PingContext(ctx); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.workers != nil {
		running := 0
		for _, st := range c.workers.Statuses() {
			if st.Running {
				running++
			}
		}
		set("workers", c.workers.IsRunning() && running == c.workers.Count(),
			fmt.Sprintf("%d/%d workers running", running, c.workers.Count()))
	} else {
		set("workers", false, "not initialized")
	}

	if c.engine != nil {
		set("visit_engine", true, fmt.Sprintf("active visits: %d", c.engine.Active()))
	} else {
		set("visit_engine", false, "not initialized")
	}

	if c.config.NATS.Enabled {
		switch {
		case c.publisher == nil:
			set("nats", false, "not initialized")
		case !c.publisher.Connected():
			set("nats", false, "disconnected")
		default:
			set("nats", true, "")
		}
	}

	return status
}

// HealthReport flattens Health into component -> "ok" or the failure message
func (c *Container) HealthReport(ctx context.Context) map[string]string {
	report := make(map[string]string)
	for name, h := range c.Health(ctx).Components {
		switch {
		case h.Healthy:
			report[name] = "ok"
		case h.Message != "":
			report[name] = h.Message
		default:
			report[name] = "unhealthy"
		}
	}
	return report
}

func (c *Container) initDatabase() error {
	dbBundle, err := ProvideDatabase(c.ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.sqlDB = dbBundle.SqlDB
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.sqlDB, c.logger)
	if err != nil {
		c.sqlDB.Close()
		c.sqlDB = nil
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initJobAPI() error {
	client, err := ProvideJobAPI(&c.config.JobAPI, c.logger)
	if err != nil {
		return err
	}
	c.jobAPI = client
	return nil
}

func (c *Container) initMessaging() error {
	publisher, err := ProvidePublisher(&c.config.NATS, c.logger)
	if err != nil {
		return err
	}
	c.publisher = publisher
	if publisher == nil {
		c.logger.Info("NATS event bridge disabled")
	}
	return nil
}

func (c *Container) initDispatcherAndEngine() error {
	c.dispatcher = ProvideDispatcher(c.logger)

	engine, err := ProvideVisitEngine(&EngineDeps{
		API:        c.jobAPI,
		Repos:      c.repositories,
		TxManager:  c.db,
		Dispatcher: c.dispatcher,
		Publisher:  c.publisher,
		Workflow:   &c.config.Workflow,
		Invoice:    &c.config.Invoice,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initWorkers() error {
	c.workers = ProvideWorkers(c.engine, c.repositories, &c.config.Workflow, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// DB returns the transaction manager
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Engine returns the visit engine
func (c *Container) Engine() workflow.VisitEngine {
	return c.engine
}

// Workers returns the worker manager
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration
func (c *Container) Config() *Config {
	return c.config
}
