package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-booking-engine/internal/api/router"
	"github.com/wolfman30/clinic-booking-engine/internal/appointments"
	"github.com/wolfman30/clinic-booking-engine/internal/availability"
	"github.com/wolfman30/clinic-booking-engine/internal/booking"
	appconfig "github.com/wolfman30/clinic-booking-engine/internal/config"
	"github.com/wolfman30/clinic-booking-engine/internal/conversation"
	"github.com/wolfman30/clinic-booking-engine/internal/directory"
	"github.com/wolfman30/clinic-booking-engine/internal/doctors"
	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-booking-engine/internal/http/middleware"
	"github.com/wolfman30/clinic-booking-engine/internal/intent"
	"github.com/wolfman30/clinic-booking-engine/internal/locker"
	"github.com/wolfman30/clinic-booking-engine/internal/notify"
	"github.com/wolfman30/clinic-booking-engine/internal/observability/metrics"
	"github.com/wolfman30/clinic-booking-engine/internal/queue"
	"github.com/wolfman30/clinic-booking-engine/internal/realtime"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

// Deps are the external connections. Any of them may be nil, in which case
// the in-memory implementation is used.
type Deps struct {
	Pool     *pgxpool.Pool
	SQL      *sql.DB
	Redis    *redis.Client
	AWS      *aws.Config
	Sink     events.Sink
	Registry prometheus.Registerer
	Logger   *logging.Logger
}

// App is the assembled engine shared by the API server and the worker.
type App struct {
	Bus           *events.Bus
	Locker        locker.Locker
	Doctors       *doctors.Service
	Aggregates    *doctors.Aggregates
	Appointments  appointments.Repository
	Availability  *availability.Index
	Directory     *directory.Directory
	Booking       *booking.Service
	Queue         *queue.Manager
	Contexts      conversation.ContextStore
	Conversation  *conversation.Service
	Notifications notify.Store
	Notifier      *notify.Service
	Hub           *realtime.Hub
	Outbox        *events.OutboxStore
	Completion    *appointments.CompletionJob

	cfg    *appconfig.Config
	logger *logging.Logger
}

// Build wires every component from config. The same event bus carries
// scheduling events to notifications, websocket clients and, when enabled,
// the outbox or a direct sink.
func Build(ctx context.Context, cfg *appconfig.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	loc := cfg.Location()
	clock := func() time.Time { return time.Now().In(loc) }

	schedulingMetrics := metrics.NewSchedulingMetrics(reg)
	conversationMetrics := metrics.NewConversationMetrics(reg)
	bus := events.NewBus(logger.WithComponent("events"))

	app := &App{Bus: bus, cfg: cfg, logger: logger}

	var doctorStore doctors.Store = doctors.NewMemoryStore()
	if deps.Pool != nil {
		doctorStore = doctors.NewPostgresStore(deps.Pool)
	}
	app.Locker = locker.NewLocalLocker()
	if deps.Redis != nil {
		app.Locker = locker.NewRedisLocker(deps.Redis, logger)
	}
	app.Aggregates = doctors.NewAggregates(doctorStore, app.Locker, logger).
		WithLockTiming(cfg.LockTTL, cfg.LockWait).
		WithMetrics(schedulingMetrics)

	app.Appointments = appointments.NewMemoryRepository()
	if deps.SQL != nil {
		app.Appointments = appointments.NewPostgresRepository(deps.SQL)
	}

	app.Doctors = doctors.NewService(app.Aggregates, bus, logger).
		WithClock(time.Now, loc).
		WithHorizon(cfg.AvailabilityHorizonDays)
	app.Availability = availability.NewIndex(doctorStore, loc)
	mapper := directory.NewSymptomMapper(nil)
	app.Directory = directory.New(doctorStore, mapper, logger).WithPageSize(cfg.SearchPageSize)
	app.Booking = booking.NewService(app.Aggregates, app.Appointments, bus, logger).
		WithClock(time.Now, loc).
		WithMetrics(schedulingMetrics)
	app.Queue = queue.NewManager(app.Aggregates, app.Appointments, bus, logger).WithMetrics(schedulingMetrics)
	app.Completion = appointments.NewCompletionJob(app.Appointments, app.Locker, cfg.CompletionCron, loc, logger)

	app.Contexts = conversation.NewMemoryContextStore()
	if deps.Redis != nil {
		app.Contexts = conversation.NewRedisContextStore(deps.Redis, cfg.ContextTTL)
	}
	classifier, err := BuildHintClassifier(ctx, cfg, deps.AWS, conversationMetrics, logger)
	if err != nil {
		return nil, err
	}
	app.Conversation = conversation.NewService(conversation.ServiceDeps{
		Store:        app.Contexts,
		Resolver:     intent.NewResolver(mapper),
		Classifier:   classifier,
		Directory:    app.Directory,
		Doctors:      app.Doctors,
		Availability: app.Availability,
		Booking:      app.Booking,
		Metrics:      conversationMetrics,
		Logger:       logger,
	}).WithClock(clock)

	var (
		contacts notify.ContactBook = notify.NewMemoryContactBook()
		dedupe                      = notifyDeduper(events.NewMemoryProcessedStore())
	)
	app.Notifications = notify.NewMemoryStore()
	if deps.Pool != nil {
		app.Notifications = notify.NewPostgresStore(deps.Pool)
		contacts = notify.NewPostgresContactBook(deps.Pool)
		dedupe = events.NewProcessedStore(deps.Pool)
	}
	app.Notifier = notify.NewService(app.Notifications, contacts,
		BuildSMSSender(cfg, logger), BuildEmailSender(cfg, deps.AWS, logger), dedupe, logger)
	app.Hub = realtime.NewHub(cfg.CORSAllowedOrigins, logger)

	bus.Subscribe(notify.Consumer, app.Notifier)
	bus.Subscribe("realtime", realtime.NewHandler(app.Hub, topicFor, logger))
	switch {
	case cfg.OutboxEnabled && deps.Pool != nil:
		app.Outbox = events.NewOutboxStore(deps.Pool)
		bus.Subscribe("outbox", app.Outbox)
	case deps.Sink != nil:
		bus.Subscribe("sink", events.SinkHandler(deps.Sink))
	}

	return app, nil
}

type notifyDeduper interface {
	MarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
}

// topicFor maps an authenticated websocket caller to its stream.
func topicFor(r *http.Request) (string, bool) {
	p, ok := httpmiddleware.PrincipalFromContext(r.Context())
	if !ok {
		return "", false
	}
	if p.Role == httpmiddleware.RoleDoctor {
		return realtime.DoctorTopic(p.DoctorID), p.DoctorID != ""
	}
	return realtime.PatientTopic(p.AccountID), p.AccountID != ""
}

// Router builds the HTTP surface over the app.
func (a *App) Router(metricsHandler http.Handler) http.Handler {
	return router.New(&router.Config{
		Logger:               a.logger,
		ConversationHandler:  conversation.NewHandler(a.Conversation, a.Contexts, a.logger),
		DoctorHandler:        handlers.NewDoctorHandler(a.Doctors, a.Queue, a.Appointments, a.logger),
		PatientHandler:       handlers.NewPatientHandler(a.Directory, a.Availability, a.Booking, a.Queue, a.Appointments, a.cfg.AvailabilityHorizonDays, a.logger),
		NotificationsHandler: handlers.NewNotificationsHandler(a.Notifications, a.logger),
		RealtimeHandler:      realtime.NewHandler(a.Hub, topicFor, a.logger),
		MetricsHandler:       metricsHandler,
		CORSAllowedOrigins:   a.cfg.CORSAllowedOrigins,
		JWTSecret:            a.cfg.JWTSecret,
		ChatRateLimit:        a.cfg.RateLimitPerMinute,
	})
}

// Shutdown waits for in-flight event handlers.
func (a *App) Shutdown(ctx context.Context) error {
	a.Completion.Stop()
	return a.Bus.Wait(ctx)
}
