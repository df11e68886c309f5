package container

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/fieldjob/internal/application/dispatcher"
	"github.com/garyjia/fieldjob/internal/application/port"
	"github.com/garyjia/fieldjob/internal/application/workflow"
	"github.com/garyjia/fieldjob/internal/domain/event"
	"github.com/garyjia/fieldjob/internal/infrastructure/external/jobapi"
	"github.com/garyjia/fieldjob/internal/infrastructure/messaging/natsbus"
	"github.com/garyjia/fieldjob/internal/infrastructure/persistence/repository"
	"github.com/garyjia/fieldjob/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/fieldjob/internal/infrastructure/storage"
	"github.com/garyjia/fieldjob/internal/infrastructure/worker"
	"github.com/garyjia/fieldjob/internal/invoice"
	"github.com/garyjia/fieldjob/pkg/database"
	"github.com/garyjia/fieldjob/pkg/utils"
)

// DatabaseBundle holds database-related components
type DatabaseBundle struct {
	SqlDB          *sql.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories
type RepositoryBundle struct {
	VisitLog  port.VisitLogRepository
	Snapshots port.SnapshotRepository
}

// ProvideDatabase opens the database and applies pending migrations
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(ctx, cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		SqlDB:          db.DB,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		VisitLog:  repository.NewVisitLogRepository(sqlDB, logger),
		Snapshots: repository.NewSnapshotRepository(sqlDB, logger),
	}, nil
}

// ProvideJobAPI creates the job service client
func ProvideJobAPI(cfg *JobAPIConfig, logger *zap.Logger) (*jobapi.Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("job API base URL is required")
	}

	retry := jobapi.DefaultRetry
	if cfg.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseDelay > 0 {
		retry.InitialWait = cfg.RetryBaseDelay
	}
	if cfg.RetryMaxDelay > 0 {
		retry.MaxWait = cfg.RetryMaxDelay
	}

	return jobapi.NewClient(jobapi.Config{
		BaseURL:   cfg.BaseURL,
		Token:     cfg.Token,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
		Retry:     retry,
	}, logger), nil
}

// ProvidePublisher connects the NATS event bridge. Returns nil when the
// bridge is disabled.
func ProvidePublisher(cfg *NATSConfig, logger *zap.Logger) (*natsbus.Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	return natsbus.Connect(natsbus.Config{
		URL:           cfg.URL,
		SubjectPrefix: cfg.SubjectPrefix,
		Name:          cfg.ClientName,
		FlushTimeout:  cfg.FlushTimeout,
	}, logger)
}

// ProvideDispatcher creates the event dispatcher with the job audit log
// bound to every job.* event
func ProvideDispatcher(logger *zap.Logger) dispatcher.Dispatcher {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger)))
	d.OnFamily("job-audit", event.FamilyJob, jobAudit(logger))
	return d
}

// jobAudit logs every change the visit made on the job service
func jobAudit(logger *zap.Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		logger.Info("Job service change",
			zap.String("event_type", evt.Type.String()),
			zap.String("job_id", evt.JobID),
			zap.String("session_id", evt.SessionID()),
			zap.String("status", evt.GetPayloadString(event.KeyStatus)),
			zap.Float64("total", evt.GetPayloadFloat(event.KeyTotal)))
		return nil
	}
}

// EngineDeps holds the dependencies of the visit engine
type EngineDeps struct {
	API        port.JobAPI
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Dispatcher dispatcher.Dispatcher
	Publisher  *natsbus.Publisher
	Workflow   *WorkflowConfig
	Invoice    *InvoiceConfig
	Logger     *zap.Logger
}

// ProvideVisitEngine wires the recorder and event bridge to the dispatcher
// and creates the engine
func ProvideVisitEngine(deps *EngineDeps) (workflow.VisitEngine, error) {
	if deps == nil || deps.API == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("job API and dispatcher are required")
	}

	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(utils.NewKVLogger(deps.Logger)),
		workflow.WithCacheExpiry(deps.Workflow.SessionExpiry),
		workflow.WithTimerTick(deps.Workflow.TimerTick),
		workflow.WithInvoiceRenderer(invoice.NewExcelRenderer(invoice.Config{
			TemplatePath: deps.Invoice.TemplatePath,
			CompanyName:  deps.Invoice.CompanyName,
			Currency:     deps.Invoice.Currency,
		}, storage.NewLocalDocumentStore(deps.Invoice.OutputDir, deps.Logger), deps.Logger)),
	}

	if deps.Repos != nil {
		workflow.NewVisitRecorder(deps.Repos.VisitLog, deps.Repos.Snapshots, deps.TxManager).Register(deps.Dispatcher)
		opts = append(opts,
			workflow.WithSnapshots(deps.Repos.Snapshots),
			workflow.WithVisitLog(deps.Repos.VisitLog),
		)
	}
	if deps.Publisher != nil {
		deps.Publisher.Register(deps.Dispatcher)
	}

	return workflow.NewEngine(deps.API, opts...), nil
}

// ProvideWorkers creates the background workers
func ProvideWorkers(engine workflow.VisitEngine, repos *RepositoryBundle, cfg *WorkflowConfig, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)

	if cfg.SweepInterval > 0 {
		manager.Register(worker.NewSessionSweeper(engine, cfg.SweepInterval, logger))
	}
	if repos != nil && cfg.LogRetention > 0 && cfg.RetentionCheck > 0 {
		manager.Register(worker.NewLogRetentionWorker(repos.VisitLog, cfg.LogRetention, cfg.RetentionCheck, logger))
	}

	return manager
}
