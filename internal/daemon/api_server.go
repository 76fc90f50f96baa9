package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/fileutil"
	"scribe/internal/logging"
	"scribe/internal/preflight"
	"scribe/internal/services"
	"scribe/internal/workflow"
)

// multipartMemory is the in-memory budget for a multipart form; larger
// parts spill to temporary files.
const multipartMemory = 32 << 20

type apiServer struct {
	cfg     *config.Config
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	queries *api.QueryService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if cfg == nil || d == nil {
		return nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		cfg:     cfg,
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		daemon:  d,
		queries: d.queries,
	}
	srv.server = &http.Server{
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestContext)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware(s.cfg.Paths.APIToken))

		r.Post("/transcribe", s.handleTranscribe)

		r.Route("/task", func(r chi.Router) {
			r.Get("/queue", s.handleQueue)
			r.Get("/status/{taskID}", s.handleTaskStatus)
			r.Get("/status/{taskID}/file/{index}", s.handleFileStatus)
			r.Get("/results/{taskID}", s.handleTaskResults)
			r.Get("/results/{taskID}/completed", s.handleCompletedResults)
			r.Get("/results/{taskID}/file/{index}", s.handleFileResult)
		})

		r.Get("/files/recent", s.handleRecentFiles)
		r.Get("/files/stats", s.handleFileStats)
	})
	return r
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// requestContext copies the chi request id into the services context so
// request-scoped logs carry correlation_id, and logs each request at debug.
func (s *apiServer) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	limit := int64(s.cfg.Upload.MaxFiles)*s.cfg.Upload.MaxFileBytes + multipartMemory
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
				Error:   api.CodeInvalidUpload,
				Message: "request body too large",
			})
			return
		}
		s.writeError(w, http.StatusBadRequest, api.ErrorResponse{
			Error:   api.CodeInvalidUpload,
			Message: "expected multipart/form-data with field \"files\"",
		})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	sources, userID, err := stageUploads(s.cfg, r.MultipartForm)
	if err != nil {
		if isUploadError(err) {
			s.writeError(w, http.StatusBadRequest, api.ErrorResponse{Error: api.CodeInvalidUpload, Message: err.Error()})
			return
		}
		s.internalError(w, r, "stage uploads", err)
		return
	}

	taskID, err := s.daemon.Enqueue(r.Context(), sources, userID)
	if err != nil {
		paths := make([]string, 0, len(sources))
		for _, src := range sources {
			paths = append(paths, src.Path)
		}
		_ = fileutil.RemoveAll(paths...)
		if errors.Is(err, workflow.ErrNotRunning) {
			s.writeError(w, http.StatusServiceUnavailable, api.ErrorResponse{Error: api.CodeUnavailable, Message: "queue is not running"})
			return
		}
		s.internalError(w, r, "enqueue", err)
		return
	}

	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name)
	}
	s.writeJSON(w, http.StatusOK, api.EnqueueResponse{
		TaskID:    taskID,
		Status:    "queued",
		Message:   fmt.Sprintf("Successfully queued %d file(s) for transcription", len(sources)),
		FileCount: len(sources),
		Files:     names,
	})
}

func (s *apiServer) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := s.queries.GetTask(r.Context(), taskID)
	if err != nil {
		s.internalError(w, r, "get task", err)
		return
	}
	if task == nil {
		s.taskNotFound(w, taskID)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *apiServer) handleFileStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	index, ok := s.fileIndex(w, r)
	if !ok {
		return
	}
	file, err := s.queries.GetFile(r.Context(), taskID, index)
	if err != nil {
		s.internalError(w, r, "get file", err)
		return
	}
	if file == nil {
		s.fileNotFound(w, taskID, index)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileResponse{TaskID: taskID, File: *file})
}

func (s *apiServer) handleCompletedResults(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	results, err := s.queries.GetCompletedResults(r.Context(), taskID)
	if err != nil {
		s.internalError(w, r, "get completed results", err)
		return
	}
	if results == nil {
		s.taskNotFound(w, taskID)
		return
	}
	s.writeJSON(w, http.StatusOK, results)
}

func (s *apiServer) handleFileResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	index, ok := s.fileIndex(w, r)
	if !ok {
		return
	}
	result, err := s.queries.GetFileResult(r.Context(), taskID, index)
	if err != nil {
		s.internalError(w, r, "get file result", err)
		return
	}
	if result != nil {
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	file, err := s.queries.GetFile(r.Context(), taskID, index)
	if err != nil {
		s.internalError(w, r, "get file", err)
		return
	}
	if file == nil {
		s.fileNotFound(w, taskID, index)
		return
	}
	progress := file.Progress
	s.writeError(w, http.StatusBadRequest, api.ErrorResponse{
		Error:           api.CodeResultNotReady,
		Message:         fmt.Sprintf("File %s is not completed yet", file.Filename),
		CurrentStatus:   file.Status,
		CurrentProgress: &progress,
	})
}

func (s *apiServer) handleTaskResults(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	results, err := s.queries.GetTaskResults(r.Context(), taskID)
	var incomplete *api.IncompleteError
	switch {
	case errors.Is(err, api.ErrTaskNotFound):
		s.taskNotFound(w, taskID)
	case errors.As(err, &incomplete):
		s.writeError(w, http.StatusBadRequest, api.ErrorResponse{
			Error:           api.CodeTaskNotComplete,
			Message:         fmt.Sprintf("Task has %d files still processing", len(incomplete.Outstanding)),
			IncompleteFiles: incomplete.Filenames(),
		})
	case err != nil:
		s.internalError(w, r, "get task results", err)
	default:
		s.writeJSON(w, http.StatusOK, results)
	}
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	info, err := s.queries.QueueInfo(r.Context())
	if err != nil {
		s.internalError(w, r, "queue info", err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *apiServer) handleRecentFiles(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			s.writeError(w, http.StatusBadRequest, api.ErrorResponse{
				Error:   api.CodeInvalidRequest,
				Message: "limit must be an integer between 1 and 500",
			})
			return
		}
		limit = parsed
	}
	files, err := s.queries.RecentFiles(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, "recent files", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RecentFilesResponse{Files: files})
}

func (s *apiServer) handleFileStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queries.FileStats(r.Context())
	if err != nil {
		s.internalError(w, r, "file stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FileStatsResponse{Counts: stats})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	info := s.daemon.Info()
	payload := api.HealthResponse{
		Status:        "normal",
		Device:        info.Device,
		Model:         info.Model,
		UptimeSeconds: float64(status.Uptime.Round(100*time.Millisecond).Milliseconds()) / 1000,
		APIVersion:    APIVersion,
		QueueDB:       status.QueueDBPath,
		Queue:         status.Queue,
		Dependencies:  api.FromDependencies(status.Dependencies),
		Checks:        api.FromChecks(status.Checks),
	}
	if degraded(status) {
		payload.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func degraded(status Status) bool {
	if !status.Running {
		return true
	}
	for _, dep := range status.Dependencies {
		if !dep.Available && !dep.Optional {
			return true
		}
	}
	return len(preflight.Failed(status.Checks)) > 0
}

func (s *apiServer) fileIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, api.ErrorResponse{
			Error:   api.CodeInvalidRequest,
			Message: "file index must be an integer",
		})
		return 0, false
	}
	return index, true
}

func (s *apiServer) taskNotFound(w http.ResponseWriter, taskID string) {
	s.writeError(w, http.StatusNotFound, api.ErrorResponse{
		Error:   api.CodeTaskNotFound,
		Message: fmt.Sprintf("Task %s not found", taskID),
	})
}

func (s *apiServer) fileNotFound(w http.ResponseWriter, taskID string, index int) {
	s.writeError(w, http.StatusNotFound, api.ErrorResponse{
		Error:   api.CodeFileNotFound,
		Message: fmt.Sprintf("File %d not found in task %s", index, taskID),
	})
}

func (s *apiServer) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_error",
		logging.String("operation", op),
		logging.Error(err),
	)
	s.writeError(w, http.StatusInternalServerError, api.ErrorResponse{
		Error:   api.CodeInternal,
		Message: fmt.Sprintf("%s failed", op),
	})
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, body api.ErrorResponse) {
	s.writeJSON(w, status, body)
}
