package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/taskcal/internal/backup"
	"github.com/dukerupert/taskcal/internal/handler"
	"github.com/dukerupert/taskcal/internal/middleware"
	"github.com/dukerupert/taskcal/internal/push"
	"github.com/dukerupert/taskcal/internal/store"
	ws "github.com/dukerupert/taskcal/internal/websocket"
)

// Options carries the settings the router needs beyond the database.
type Options struct {
	Location   *time.Location
	SessionTTL time.Duration
	WSOrigins  []string

	// BackupTarget enables the backup manager and its admin routes.
	BackupTarget backup.Target
	Backup       backup.Config

	// Push enables web push when both VAPID keys are set.
	Push push.Config
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	taskH         *handler.TaskHandler
	scheduleH     *handler.ScheduleHandler
	occurrenceH   *handler.OccurrenceHandler
	userH         *handler.UserHandler
	backupH       *handler.BackupHandler
	backupManager *backup.Manager
	pushH         *handler.PushHandler
	pushNotifier  *push.Notifier
	userStore     *store.UserStore
	taskStore     *store.TaskStore
	scheduleStore *store.ScheduleStore
	sessionStore  *store.SessionStore
	rateLimiter   *middleware.RateLimiter
	wsOrigins     []string
	logger        *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = store.DefaultSessionTTL
	}
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	taskStore := store.NewTaskStore(db)
	scheduleStore := store.NewScheduleStore(db)
	sessionStore := store.NewSessionStore(db, opts.SessionTTL)

	var backupMgr *backup.Manager
	var backupH *handler.BackupHandler
	if opts.BackupTarget != nil {
		backupMgr = backup.NewManager(opts.Backup, db, opts.BackupTarget, func(st backup.Status) {
			hub.Broadcast(ws.NewMessage(ws.EntityBackup, ws.ActionStatus, 0, map[string]any{"status": st}))
		}, logger.With("component", "backup"))
		backupH = handler.NewBackupHandler(backupMgr, logger.With("component", "backup"))
	}

	var pushNotifier *push.Notifier
	var pushH *handler.PushHandler
	if opts.Push.Enabled() {
		pushStore := store.NewPushStore(db)
		pushLogger := logger.With("component", "push")
		pushNotifier = push.NewNotifier(push.NewService(opts.Push), pushStore, pushLogger)
		pushH = handler.NewPushHandler(pushStore, opts.Push.VAPIDPublicKey, pushNotifier, pushLogger)
	}

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, opts.SessionTTL, logger.With("component", "auth")),
		taskH:         handler.NewTaskHandler(taskStore, scheduleStore, userStore, hub, opts.Location, logger.With("component", "task")),
		scheduleH:     handler.NewScheduleHandler(taskStore, scheduleStore, hub, opts.Location, logger.With("component", "schedule")),
		occurrenceH:   handler.NewOccurrenceHandler(taskStore, scheduleStore, opts.Location, logger.With("component", "occurrence")),
		userH:         handler.NewUserHandler(userStore, logger.With("component", "user")),
		backupH:       backupH,
		backupManager: backupMgr,
		pushH:         pushH,
		pushNotifier:  pushNotifier,
		userStore:     userStore,
		taskStore:     taskStore,
		scheduleStore: scheduleStore,
		sessionStore:  sessionStore,
		rateLimiter:   middleware.NewRateLimiter(),
		wsOrigins:     opts.WSOrigins,
		logger:        logger,
	}
}

// Hub returns the live update hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager, or nil when backups are off.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushNotifier returns the web push notifier, or nil when push is off.
func (s *Server) PushNotifier() *push.Notifier {
	return s.pushNotifier
}

func (s *Server) TaskStore() *store.TaskStore {
	return s.taskStore
}

func (s *Server) ScheduleStore() *store.ScheduleStore {
	return s.scheduleStore
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.Handle("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
	})
}

// loginAttempts is how many logins one address may try per minute.
const loginAttempts = 10

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.Handler {
	return middleware.RateLimit(s.rateLimiter, middleware.RealIP, loginAttempts, time.Minute)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	admin := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAdmin(h)
	}

	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)

	// Tasks
	mux.HandleFunc("GET /api/tasks", s.taskH.List)
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("DELETE /api/tasks/{id}", s.taskH.Delete)

	// Schedules
	mux.HandleFunc("GET /api/tasks/{id}/schedules", s.scheduleH.List)
	mux.HandleFunc("POST /api/tasks/{id}/schedules", s.scheduleH.Create)
	mux.HandleFunc("DELETE /api/tasks/{id}/schedules/{schedule_id}", s.scheduleH.Delete)
	mux.HandleFunc("GET /api/tasks/{id}/next", s.scheduleH.Next)

	// Occurrences
	mux.HandleFunc("GET /api/occurrences", s.occurrenceH.Range)
	mux.HandleFunc("GET /api/occurrences/week", s.occurrenceH.Week)
	mux.HandleFunc("GET /api/occurrences/month", s.occurrenceH.Month)
	mux.HandleFunc("GET /api/occurrences/upcoming", s.occurrenceH.Upcoming)

	// Users
	mux.HandleFunc("GET /api/users", s.userH.List)
	mux.Handle("POST /api/users", admin(s.userH.Create))
	mux.Handle("PUT /api/users/{id}/password", admin(s.userH.UpdatePassword))
	mux.Handle("DELETE /api/users/{id}", admin(s.userH.Delete))

	// Backups
	if s.backupH != nil {
		mux.Handle("GET /api/backups", admin(s.backupH.List))
		mux.Handle("POST /api/backups", admin(s.backupH.Run))
	}

	// Web push
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.List)
		mux.HandleFunc("POST /api/push/subscriptions", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("POST /api/push/test", s.pushH.Test)
	}

	// Home redirects to this week's agenda.
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/occurrences/week", http.StatusSeeOther)
	})

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.wsOrigins, s.logger.With("component", "websocket")))
}
