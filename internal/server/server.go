// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/internal/automation"
	"github.com/marketpulse/orchestrator/internal/cache"
	"github.com/marketpulse/orchestrator/internal/config"
	"github.com/marketpulse/orchestrator/internal/metrics"
	"github.com/marketpulse/orchestrator/internal/models"
	"github.com/marketpulse/orchestrator/internal/monitor"
	"github.com/marketpulse/orchestrator/internal/notification"
	"github.com/marketpulse/orchestrator/internal/scheduler"
	"github.com/marketpulse/orchestrator/internal/storage"
	"github.com/marketpulse/orchestrator/internal/supervisor"
	"github.com/marketpulse/orchestrator/pkg/utils"
)

// HTTPServer exposes the orchestration core over HTTP
type HTTPServer struct {
	config         *config.ServerConfig
	server         *http.Server
	router         *mux.Router
	storage        storage.Storage
	scheduler      scheduler.Scheduler
	monitor        monitor.Engine
	notifier       notification.Notifier
	rules          automation.Engine
	cache          cache.Store
	warmer         *cache.Warmer
	supervisor     *supervisor.Supervisor
	metricsManager *metrics.Manager
	logger         *logrus.Logger
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(
	cfg *config.ServerConfig,
	store storage.Storage,
	taskScheduler scheduler.Scheduler,
	alertEngine monitor.Engine,
	notifier notification.Notifier,
	ruleEngine automation.Engine,
	cacheStore cache.Store,
	warmer *cache.Warmer,
	sup *supervisor.Supervisor,
	metricsManager *metrics.Manager,
) *HTTPServer {
	server := &HTTPServer{
		config:         cfg,
		storage:        store,
		scheduler:      taskScheduler,
		monitor:        alertEngine,
		notifier:       notifier,
		rules:          ruleEngine,
		cache:          cacheStore,
		warmer:         warmer,
		supervisor:     sup,
		metricsManager: metricsManager,
		logger:         utils.GetLogger(),
	}

	server.setupRouter()

	server.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return server
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	if s.config.EnableHealth {
		api.HandleFunc("/health", s.healthHandler).Methods("GET")
	}
	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
	}
	api.HandleFunc("/stats", s.statsHandler).Methods("GET")

	// Business endpoints
	api.HandleFunc("/businesses", s.saveBusinessHandler).Methods("POST")
	api.HandleFunc("/businesses/{businessID}", s.getBusinessHandler).Methods("GET")

	// Task endpoints
	api.HandleFunc("/tasks", s.scheduleTaskHandler).Methods("POST")
	api.HandleFunc("/tasks", s.listTasksHandler).Methods("GET")
	api.HandleFunc("/tasks/execute", s.executeDueTasksHandler).Methods("POST")
	api.HandleFunc("/tasks/{id}", s.getTaskHandler).Methods("GET")
	api.HandleFunc("/tasks/{id}", s.cancelTaskHandler).Methods("DELETE")

	// Alert endpoints
	api.HandleFunc("/businesses/{businessID}/check", s.checkBusinessHandler).Methods("POST")
	api.HandleFunc("/businesses/{businessID}/alerts", s.listAlertsHandler).Methods("GET")
	api.HandleFunc("/businesses/{businessID}/alerts/{id}/acknowledge", s.acknowledgeAlertHandler).Methods("POST")
	api.HandleFunc("/businesses/{businessID}/alerts/{id}/resolve", s.resolveAlertHandler).Methods("POST")
	api.HandleFunc("/businesses/{businessID}/alert-configurations", s.listAlertConfigsHandler).Methods("GET")
	api.HandleFunc("/businesses/{businessID}/alert-configurations", s.configureAlertHandler).Methods("PUT")

	// Notification channel endpoints
	api.HandleFunc("/businesses/{businessID}/channels", s.listChannelsHandler).Methods("GET")
	api.HandleFunc("/businesses/{businessID}/channels", s.configureChannelHandler).Methods("POST")
	api.HandleFunc("/businesses/{businessID}/channels/{id}", s.deleteChannelHandler).Methods("DELETE")
	api.HandleFunc("/businesses/{businessID}/channels/{id}/test", s.testChannelHandler).Methods("POST")
	api.HandleFunc("/businesses/{businessID}/notifications", s.dispatchEventHandler).Methods("POST")

	// Automation rule endpoints
	api.HandleFunc("/businesses/{businessID}/rules", s.listRulesHandler).Methods("GET")
	api.HandleFunc("/businesses/{businessID}/rules", s.upsertRuleHandler).Methods("POST")
	api.HandleFunc("/businesses/{businessID}/rules/{id}", s.getRuleHandler).Methods("GET")

	// Cache endpoints
	api.HandleFunc("/cache/stats", s.cacheStatsHandler).Methods("GET")
	api.HandleFunc("/cache/flush", s.cacheFlushHandler).Methods("POST")
	api.HandleFunc("/cache/invalidate", s.cacheInvalidateHandler).Methods("POST")
	api.HandleFunc("/cache/warm", s.cacheWarmHandler).Methods("POST")

	// Supervisor endpoints
	api.HandleFunc("/jobs", s.listJobsHandler).Methods("GET")
	api.HandleFunc("/jobs/{name}/run", s.runJobHandler).Methods("POST")
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	if s.metricsManager != nil {
		s.metricsManager.UpdateSystemMetrics()
		go s.systemMetricsUpdater()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// surface immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// systemMetricsUpdater updates system metrics periodically
func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.metricsManager.UpdateSystemMetrics()
		s.metricsManager.GetPrometheusMetrics().UpdateComponentHealth("storage", s.storage.Ping() == nil)
		if s.cache != nil {
			s.metricsManager.GetPrometheusMetrics().UpdateCacheEntries(int(s.cache.Stats().Entries))
		}
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Health and stats

func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	storageHealthy := s.storage.Ping() == nil
	status := "healthy"
	code := http.StatusOK
	if !storageHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"components": map[string]bool{
			"storage": storageHealthy,
		},
	})
}

func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.storage.GetStorageStats(r.Context())
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	stats := map[string]interface{}{
		"timestamp":     time.Now().UTC(),
		"storage":       storageStats,
		"scheduler":     s.scheduler.GetStats(),
		"monitor":       s.monitor.GetStats(),
		"notifications": s.notifier.GetStats(),
		"automation":    s.rules.GetStats(),
	}
	if s.cache != nil {
		stats["cache"] = s.cache.Stats()
	}
	if s.supervisor != nil {
		stats["jobs"] = s.supervisor.Jobs()
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// Business handlers

func (s *HTTPServer) saveBusinessHandler(w http.ResponseWriter, r *http.Request) {
	var business models.Business
	if err := json.NewDecoder(r.Body).Decode(&business); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if business.ID == "" || business.Name == "" {
		s.writeError(w, http.StatusBadRequest, "Business id and name are required", nil)
		return
	}

	now := time.Now().UTC()
	if business.CreatedAt.IsZero() {
		business.CreatedAt = now
	}
	business.UpdatedAt = now

	if err := s.storage.SaveBusiness(r.Context(), &business); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, business)
}

func (s *HTTPServer) getBusinessHandler(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessID"]

	business, err := s.storage.GetBusiness(r.Context(), businessID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if business == nil {
		s.writeError(w, http.StatusNotFound, "Business not found", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, business)
}

// Task handlers

func (s *HTTPServer) scheduleTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req scheduler.ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	task, err := s.scheduler.ScheduleTask(r.Context(), &req)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, task)
}

func (s *HTTPServer) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	filter := models.TaskFilter{
		Limit:  s.queryInt(r, "limit", 50),
		Offset: s.queryInt(r, "offset", 0),
	}
	if businessID := r.URL.Query().Get("business_id"); businessID != "" {
		filter.BusinessID = &businessID
	}
	if campaignID := r.URL.Query().Get("campaign_id"); campaignID != "" {
		filter.CampaignID = &campaignID
	}
	if taskType := r.URL.Query().Get("type"); taskType != "" {
		t := models.TaskType(taskType)
		filter.Type = &t
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter.Statuses = []models.TaskStatus{models.TaskStatus(status)}
	}

	result, err := s.scheduler.ListTasks(r.Context(), filter)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.scheduler.GetTaskStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) cancelTaskHandler(w http.ResponseWriter, r *http.Request) {
	task, err := s.scheduler.CancelTask(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *HTTPServer) executeDueTasksHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scheduler.ExecuteDueTasks(r.Context(), time.Now().UTC())
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// Alert handlers

func (s *HTTPServer) checkBusinessHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.monitor.CheckBusiness(r.Context(), mux.Vars(r)["businessID"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) listAlertsHandler(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessID"]
	filter := models.AlertFilter{
		BusinessID: &businessID,
		Limit:      s.queryInt(r, "limit", 50),
		Offset:     s.queryInt(r, "offset", 0),
	}
	if alertType := r.URL.Query().Get("type"); alertType != "" {
		t := models.AlertType(alertType)
		filter.Type = &t
	}
	if severity := r.URL.Query().Get("severity"); severity != "" {
		sev := models.AlertSeverity(severity)
		filter.Severity = &sev
	}
	if status := r.URL.Query().Get("status"); status != "" {
		st := models.AlertStatus(status)
		filter.Status = &st
	}

	alerts, err := s.monitor.ListAlerts(r.Context(), filter)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"total":  len(alerts),
	})
}

func (s *HTTPServer) acknowledgeAlertHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	alert, err := s.monitor.AcknowledgeAlert(r.Context(), vars["id"], vars["businessID"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *HTTPServer) resolveAlertHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	alert, err := s.monitor.ResolveAlert(r.Context(), vars["id"], vars["businessID"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *HTTPServer) listAlertConfigsHandler(w http.ResponseWriter, r *http.Request) {
	configs, err := s.monitor.GetConfigurations(r.Context(), mux.Vars(r)["businessID"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"configurations": configs})
}

func (s *HTTPServer) configureAlertHandler(w http.ResponseWriter, r *http.Request) {
	var cfg models.AlertConfiguration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cfg.BusinessID = mux.Vars(r)["businessID"]

	saved, err := s.monitor.ConfigureAlert(r.Context(), &cfg)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

// Channel handlers

func (s *HTTPServer) listChannelsHandler(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	channels, err := s.notifier.ListChannels(r.Context(), mux.Vars(r)["businessID"], activeOnly)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

func (s *HTTPServer) configureChannelHandler(w http.ResponseWriter, r *http.Request) {
	var cfg models.ChannelConfiguration
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	cfg.BusinessID = mux.Vars(r)["businessID"]

	saved, err := s.notifier.ConfigureChannel(r.Context(), &cfg)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *HTTPServer) deleteChannelHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.notifier.DeleteChannel(r.Context(), vars["id"], vars["businessID"]); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *HTTPServer) testChannelHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result, err := s.notifier.TestChannel(r.Context(), vars["id"], vars["businessID"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) dispatchEventHandler(w http.ResponseWriter, r *http.Request) {
	var event models.NotificationEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	event.BusinessID = mux.Vars(r)["businessID"]
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	result, err := s.notifier.DispatchEvent(r.Context(), &event)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// Automation rule handlers

func (s *HTTPServer) listRulesHandler(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessID"]
	filter := models.RuleFilter{
		BusinessID: &businessID,
		Limit:      s.queryInt(r, "limit", 50),
		Offset:     s.queryInt(r, "offset", 0),
	}
	if activeParam := r.URL.Query().Get("active"); activeParam != "" {
		active := activeParam == "true"
		filter.Active = &active
	}

	rules, err := s.rules.ListRules(r.Context(), filter)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

func (s *HTTPServer) upsertRuleHandler(w http.ResponseWriter, r *http.Request) {
	var rule models.AutomationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	rule.BusinessID = mux.Vars(r)["businessID"]

	saved, err := s.rules.UpsertRule(r.Context(), &rule)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *HTTPServer) getRuleHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rule, err := s.rules.GetRule(r.Context(), vars["id"], vars["businessID"])
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rule)
}

// Cache handlers

func (s *HTTPServer) cacheStatsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cache.Stats())
}

func (s *HTTPServer) cacheFlushHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pattern string `json:"pattern"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	flushed := s.cache.Flush(req.Pattern)
	s.writeJSON(w, http.StatusOK, map[string]int{"flushed": flushed})
}

func (s *HTTPServer) cacheInvalidateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tags []string `json:"tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Tags) == 0 {
		s.writeError(w, http.StatusBadRequest, "At least one tag is required", nil)
		return
	}

	invalidated := s.cache.InvalidateByTag(req.Tags...)
	s.writeJSON(w, http.StatusOK, map[string]int{"invalidated": invalidated})
}

func (s *HTTPServer) cacheWarmHandler(w http.ResponseWriter, r *http.Request) {
	if s.warmer == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Cache warming is not configured", nil)
		return
	}

	var req struct {
		Strategy string `json:"strategy"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := s.warmer.Warm(r.Context(), cache.WarmStrategy(req.Strategy))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// Supervisor handlers

func (s *HTTPServer) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	if s.supervisor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Supervisor is not configured", nil)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.supervisor.Jobs()})
}

func (s *HTTPServer) runJobHandler(w http.ResponseWriter, r *http.Request) {
	if s.supervisor == nil {
		s.writeError(w, http.StatusServiceUnavailable, "Supervisor is not configured", nil)
		return
	}
	name := mux.Vars(r)["name"]
	if err := s.supervisor.RunJob(r.Context(), name); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "job": name})
}

// Middleware

// loggingMiddleware logs HTTP requests
func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.logger.WithFields(logrus.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"duration":  time.Since(start),
			"remote_ip": r.RemoteAddr,
		}).Debug("HTTP request")
	})
}

// corsMiddleware handles CORS
func (s *HTTPServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Helpers

func (s *HTTPServer) queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// writeAppError maps application error codes to HTTP statuses.
func (s *HTTPServer) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case utils.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, "Resource not found", err)
	case utils.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		s.writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// writeJSON writes a JSON response
func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now().UTC(),
	}
	if err != nil {
		errorResponse["details"] = err.Error()
	}
	s.writeJSON(w, status, errorResponse)
}
