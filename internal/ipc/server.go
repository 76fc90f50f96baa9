package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"scribe/internal/api"
	"scribe/internal/daemon"
	"scribe/internal/logging"
	"scribe/internal/queue"
)

// serviceName prefixes every RPC method.
const serviceName = "Scribe"

// closeGrace bounds how long Close waits for in-flight calls before dropping
// connections.
const closeGrace = 2 * time.Second

const defaultListLimit = 50

// Option configures optional server behavior.
type Option func(*Server)

// WithShutdown registers a callback invoked after a Stop RPC has stopped the
// daemon, typically cancelling the process context.
func WithShutdown(fn func()) Option {
	return func(s *Server) {
		s.shutdown = fn
	}
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	shutdown  func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, opts ...Option) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		path:     path,
		daemon:   d,
		logger:   logger,
		listener: listener,
		ctx:      serverCtx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	rpcServer := rpc.NewServer()
	svc := &service{daemon: d, logger: logger, ctx: serverCtx, shutdown: s.shutdown}
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	s.rpcServer = rpcServer
	return s, nil
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.path
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

func (s *Server) closeConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

// Close stops the server and removes the socket file. Connected clients get
// a short grace period to finish their calls.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeGrace):
		s.closeConns()
		<-done
	}
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually"))
	}
}

type service struct {
	daemon   *daemon.Daemon
	logger   *slog.Logger
	ctx      context.Context
	shutdown func()
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	if s.shutdown != nil {
		s.shutdown()
	}
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	info := s.daemon.Info()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockFilePath
	resp.QueueDBPath = status.QueueDBPath
	resp.APIAddress = s.daemon.APIAddress()
	resp.UptimeSeconds = status.Uptime.Seconds()
	resp.Model = info.Model
	resp.Device = info.Device
	resp.State = string(status.Workflow.State)
	resp.CurrentTaskID = status.Workflow.CurrentTaskID
	resp.LastTaskID = status.Workflow.LastTaskID
	resp.LastError = status.Workflow.LastError
	resp.QueueLength = status.Queue.QueueLength
	resp.IsProcessing = status.Queue.IsProcessing
	resp.Dependencies = api.FromDependencies(status.Dependencies)
	resp.Checks = api.FromChecks(status.Checks)

	stats, err := s.daemon.Queries().FileStats(s.ctx)
	if err != nil {
		return err
	}
	resp.FileStats = stats
	return nil
}

func (s *service) QueueStatus(_ QueueStatusRequest, resp *QueueStatusResponse) error {
	info, err := s.daemon.Queries().QueueInfo(s.ctx)
	if err != nil {
		return err
	}
	resp.Info = info
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	tasks, err := s.daemon.Queries().ListTasks(s.ctx, limit)
	if err != nil {
		return err
	}
	resp.Tasks = tasks
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	s.logger.Debug("queue clear requested")
	res, err := s.daemon.ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.DeletedTasks = res.DeletedTasks
	resp.DeletedFiles = res.DeletedFiles
	s.logger.Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("deleted_tasks", res.DeletedTasks),
		logging.Int64("deleted_files", res.DeletedFiles))
	return nil
}

func (s *service) TaskShow(req TaskShowRequest, resp *TaskShowResponse) error {
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return errors.New("task id is required")
	}
	task, err := s.daemon.Queries().GetTask(s.ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s not found", taskID)
	}
	resp.Task = *task
	return nil
}

func (s *service) TaskResults(req TaskResultsRequest, resp *TaskResultsResponse) error {
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return errors.New("task id is required")
	}
	queries := s.daemon.Queries()
	if req.CompletedOnly {
		completed, err := queries.GetCompletedResults(s.ctx, taskID)
		if err != nil {
			return err
		}
		if completed == nil {
			return fmt.Errorf("task %s not found", taskID)
		}
		resp.Completed = completed
		resp.Complete = completed.CompletedCount == completed.TotalCount
		return nil
	}

	results, err := queries.GetTaskResults(s.ctx, taskID)
	var incomplete *api.IncompleteError
	switch {
	case errors.Is(err, api.ErrTaskNotFound):
		return fmt.Errorf("task %s not found", taskID)
	case errors.As(err, &incomplete):
		resp.Outstanding = incomplete.Outstanding
		return nil
	case err != nil:
		return err
	}
	resp.Complete = true
	resp.Results = results
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	if len(req.Files) == 0 {
		return errors.New("enqueue requires at least one file")
	}
	uploadDir := s.daemon.UploadDir()
	sources := make([]queue.FileSource, 0, len(req.Files))
	for _, file := range req.Files {
		if err := checkStagedPath(uploadDir, file.Path); err != nil {
			return err
		}
		name := strings.TrimSpace(file.Name)
		if name == "" {
			name = filepath.Base(file.Path)
		}
		sources = append(sources, queue.FileSource{Name: name, Path: file.Path})
	}
	taskID, err := s.daemon.Enqueue(s.ctx, sources, strings.TrimSpace(req.UserID))
	if err != nil {
		return err
	}
	resp.TaskID = taskID
	resp.FileCount = len(sources)
	s.logger.Info("task enqueued via IPC",
		logging.String(logging.FieldEventType, "ipc_enqueue"),
		logging.String(logging.FieldTaskID, taskID),
		logging.Int("files", len(sources)))
	return nil
}

// checkStagedPath accepts only regular files directly inside the upload
// directory, since the processing loop deletes them when done.
func checkStagedPath(uploadDir, path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("staged path %q must be absolute", path)
	}
	if filepath.Dir(filepath.Clean(path)) != filepath.Clean(uploadDir) {
		return fmt.Errorf("staged path %q is outside the upload directory %s", path, uploadDir)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("inspect staged file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("staged path %q is not a regular file", path)
	}
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TablesPresent = append(resp.TablesPresent, health.TablesPresent...)
	resp.MissingTables = append(resp.MissingTables, health.MissingTables...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalTasks = health.TotalTasks
	resp.TotalFiles = health.TotalFiles
	resp.Error = health.Error
	return nil
}
