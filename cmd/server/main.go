package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/automation"
	"github.com/planovo/planovo-api/internal/bus"
	"github.com/planovo/planovo-api/internal/config"
	"github.com/planovo/planovo-api/internal/handlers"
	"github.com/planovo/planovo-api/internal/middleware"
	"github.com/planovo/planovo-api/internal/migration"
	"github.com/planovo/planovo-api/internal/notification"
	"github.com/planovo/planovo-api/internal/report"
	"github.com/planovo/planovo-api/internal/repository"
	"github.com/planovo/planovo-api/internal/routes"
	"github.com/planovo/planovo-api/internal/temporal"
	"github.com/planovo/planovo-api/internal/temporal/activities"
	"github.com/planovo/planovo-api/internal/temporal/workflows"
	"github.com/planovo/planovo-api/internal/textgen"

	_ "github.com/lib/pq" // PostgreSQL driver
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

type application struct {
	config         *config.Config
	db             *sql.DB
	bus            *bus.Bus
	engine         *automation.Engine
	temporalClient tc.Client
	logger         zerolog.Logger

	tenants      repository.TenantRepository
	users        repository.UserRepository
	customers    repository.CustomerRepository
	employees    repository.EmployeeRepository
	appointments repository.AppointmentRepository
	invoices     repository.InvoiceRepository
	reminders    repository.ReminderRepository
	tasks        repository.TaskRepository
	inventory    repository.InventoryRepository
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	temporalLogger := temporal.NewTemporalAdapter(logger)

	gooseAdapter := migration.NewGooseAdapter(logger)
	goose.SetLogger(gooseAdapter)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Initialize Temporal client.
	temporalClient, err := tc.Dial(tc.Options{
		Logger: temporalLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Unable to create Temporal client")
	}
	defer temporalClient.Close()

	// Create the application instance.
	app := &application{
		config:         cfg,
		db:             db,
		temporalClient: temporalClient,
		logger:         logger,

		tenants:      repository.NewTenantRepository(db),
		users:        repository.NewUserRepository(db),
		customers:    repository.NewCustomerRepository(db),
		employees:    repository.NewEmployeeRepository(db),
		appointments: repository.NewAppointmentRepository(db),
		invoices:     repository.NewInvoiceRepository(db),
		reminders:    repository.NewReminderRepository(db),
		tasks:        repository.NewTaskRepository(db),
		inventory:    repository.NewInventoryRepository(db),
	}

	// Event bus and automation engine.
	app.bus = bus.New(bus.Config{
		QueueSize:     cfg.Automation.QueueSize,
		Workers:       cfg.Automation.Workers,
		MaxChainDepth: cfg.Automation.MaxChainDepth,
	}, logger)
	defer app.bus.Close()

	app.engine = app.startAutomation(logger)

	// Start the Temporal worker and schedule the cron sweep.
	temporalWorker := app.startTemporalWorker(logger)
	app.startSweepSchedule(logger)

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "http://localhost:3000"
	}
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{corsOrigin}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, temporalWorker, logger)

	logger.Info().Msg("Application terminated.")
}

// startAutomation wires the default rule set and attaches the engine and
// the reminder notifier to the bus. Subscription order matters: the
// engine must see invoice.reminder_created before the notifier so the
// level-2 letter is backfilled before mail goes out.
func (app *application) startAutomation(logger zerolog.Logger) *automation.Engine {
	textGen, err := textgen.NewClient(app.config.TextGen, app.bus, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure text generation client")
	}

	registry := automation.NewRegistry()
	registry.RegisterAll(automation.DefaultRules(automation.Deps{
		Tasks:        app.tasks,
		Customers:    app.customers,
		Invoices:     app.invoices,
		Reminders:    app.reminders,
		Appointments: app.appointments,
		Tenants:      app.tenants,
		TextGen:      textGen,
		Bus:          app.bus,
		Logger:       logger,
	}))

	engine := automation.NewEngine(registry, app.bus, logger)
	engine.Start()

	mailer, err := notification.NewSMTPMailer(app.config.Email)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure reminder mailer")
	}
	notifier := notification.NewReminderNotifier(app.invoices, app.reminders, app.customers, mailer, logger)
	notifier.Start(app.bus)

	return engine
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	reportGenerator := report.NewGenerator(app.appointments, app.employees, app.inventory, logger)

	return routes.NewRouter(routes.Handlers{
		Auth:        handlers.NewAuthHandler(app.users, app.config.JWTSecret, logger),
		Health:      handlers.NewHealthHandler(app.db, app.bus, app.engine),
		Appointment: handlers.NewAppointmentHandler(app.appointments, app.bus, logger),
		Employee:    handlers.NewEmployeeHandler(app.employees, app.bus, logger),
		Payment:     handlers.NewPaymentHandler(app.invoices, app.bus, logger),
		Invoice:     handlers.NewInvoiceHandler(app.invoices, app.reminders),
		Inventory:   handlers.NewInventoryHandler(app.inventory, app.bus, logger),
		Automation:  handlers.NewAutomationHandler(app.engine),
		Report:      handlers.NewReportHandler(reportGenerator, logger),
	}, app.config.JWTSecret)
}

func (app *application) startTemporalWorker(logger zerolog.Logger) worker.Worker {
	activityImpl := &activities.Activities{
		Invoices:  app.invoices,
		Reminders: app.reminders,
		Tasks:     app.tasks,
		Bus:       app.bus,
	}

	w := worker.New(app.temporalClient, temporal.TaskQueueName, worker.Options{})

	w.RegisterWorkflow(workflows.ReminderSweepWorkflow)
	w.RegisterActivity(activityImpl)

	// Start the worker in a goroutine so it doesn't block.
	go func() {
		logger.Info().Msg("Starting Temporal worker...")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("Unable to start worker")
		}
	}()

	return w
}

// startSweepSchedule launches the cron reminder sweep. The fixed workflow
// ID makes the start idempotent across restarts.
func (app *application) startSweepSchedule(logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := app.temporalClient.ExecuteWorkflow(ctx, tc.StartWorkflowOptions{
		ID:           temporal.SweepWorkflowID,
		TaskQueue:    temporal.TaskQueueName,
		CronSchedule: app.config.Sweep.Cron,
	}, workflows.ReminderSweepWorkflow, temporal.SweepParams{
		EscalationAfter: app.config.Sweep.EscalationAfter,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Unable to schedule reminder sweep")
	}
	logger.Info().Str("cron", app.config.Sweep.Cron).Msg("Reminder sweep scheduled")
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, temporalWorker worker.Worker, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Stop the Temporal worker.
	logger.Info().Msg("Stopping Temporal worker...")
	temporalWorker.Stop()
	logger.Info().Msg("Temporal worker stopped.")
}
