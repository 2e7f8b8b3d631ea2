package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/KamdynS/agentflows/agent/core"
	obs "github.com/KamdynS/agentflows/observability"
	"github.com/KamdynS/agentflows/pipelines"
	"github.com/KamdynS/agentflows/workflow"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Server wraps an agent with HTTP endpoints
type Server struct {
	agent     core.Agent
	config    Config
	server    *http.Server
	tel       obs.Telemetry
	sessions  AgentFactory
	runner    PipelineRunner
	workflows *workflow.Registry
	metrics   http.Handler

	// Serialises turns of the same session. Entries live while a turn
	// holds or waits for them.
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AgentFactory builds the chat agent for one request. sessionID is the
// client's session, possibly empty; events receives the agent's events.
type AgentFactory func(sessionID string, events core.EventSink) (core.Agent, error)

// PipelineRunner runs one-shot pipelines. *pipelines.Runtime implements it.
type PipelineRunner interface {
	RunPipeline(ctx context.Context, name string, inputs map[string]string, opts pipelines.RunOptions) (*pipelines.RunResult, error)
}

// Option configures a Server.
type Option func(*Server)

func WithTelemetry(t obs.Telemetry) Option { return func(s *Server) { s.tel = t } }

// WithSessions makes /chat and /chat/stream build an agent per request.
// The fixed agent passed to NewServer is then only a fallback.
func WithSessions(f AgentFactory) Option { return func(s *Server) { s.sessions = f } }

// WithPipelines enables /runs/{pipeline}.
func WithPipelines(r PipelineRunner) Option { return func(s *Server) { s.runner = r } }

// WithWorkflows enables /debug/workflows/mermaid.
func WithWorkflows(r *workflow.Registry) Option { return func(s *Server) { s.workflows = r } }

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// NewServer creates a new HTTP server for an agent
func NewServer(agent core.Agent, config Config, opts ...Option) *Server {
	if config.Port == 0 {
		config.Port = 8080
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 10 * time.Second
	}

	s := &Server{
		agent:  agent,
		config: config,
		locks:  make(map[string]*sessionLock),
	}
	for _, o := range opts {
		o(s)
	}
	s.tel = s.tel.WithDefaults()

	mux := http.NewServeMux()
	s.setupRoutes(mux)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      s.instrument(mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/chat", s.chatHandler)
	mux.HandleFunc("/chat/stream", s.streamHandler)
	if s.runner != nil {
		mux.HandleFunc("/runs/{pipeline}", s.runHandler)
	}
	if s.workflows != nil {
		mux.HandleFunc("/debug/workflows/mermaid", s.mermaidHandler)
	}
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
}

// ChatRequest represents an incoming chat request
type ChatRequest struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// ChatResponse represents a chat response
type ChatResponse struct {
	Message   string            `json:"message"`
	SessionID string            `json:"session_id,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// RunRequest is the body of POST /runs/{pipeline}.
type RunRequest struct {
	Inputs map[string]string `json:"inputs,omitempty"`
}

// healthHandler provides a health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// agentFor returns the agent serving a request and a release func that must
// be called once the turn is over.
func (s *Server) agentFor(sessionID string, events core.EventSink) (core.Agent, func(), error) {
	if s.sessions == nil {
		return s.agent, func() {}, nil
	}
	a, err := s.sessions(sessionID, events)
	if err != nil {
		return nil, nil, err
	}
	if sessionID == "" {
		return a, func() {}, nil
	}
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()
	l.Lock()
	return a, func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}, nil
}

// chatHandler handles chat requests
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Message == "" {
		s.writeError(w, "Message is required", http.StatusBadRequest)
		return
	}

	agent, release, err := s.agentFor(req.SessionID, nil)
	if err != nil {
		s.tel.Logger.Error("build agent", zap.Error(err))
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer release()

	input := core.Message{
		Role:    "user",
		Content: req.Message,
		Meta:    req.Meta,
	}

	response, err := agent.Run(r.Context(), input)
	if err != nil {
		s.tel.Logger.Warn("agent error", zap.String("session_id", req.SessionID), zap.Error(err))
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	chatResp := ChatResponse{
		Message:   response.Content,
		SessionID: req.SessionID,
		Meta:      response.Meta,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chatResp)
}

// eventFrame is one agent event on the stream.
type eventFrame struct {
	Kind  core.EventKind `json:"kind"`
	Event core.Event     `json:"event"`
}

// streamHandler handles streaming chat requests. Replies are sent as
// "message" events; with sessions enabled the agent's own events are sent
// as they happen under their kind.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	events := make(chan core.Event, 64)
	sink := func(e core.Event) {
		select {
		case events <- e:
		case <-ctx.Done():
		}
	}
	agent, release, err := s.agentFor(req.SessionID, sink)
	if err != nil {
		s.tel.Logger.Error("build agent", zap.Error(err))
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Set headers for SSE
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	input := core.Message{
		Role:    "user",
		Content: req.Message,
		Meta:    req.Meta,
	}

	output := make(chan core.Message)
	go func() {
		defer release()
		if err := agent.RunStream(ctx, input, output); err != nil && !errors.Is(err, context.Canceled) {
			s.tel.Logger.Warn("streaming error", zap.String("session_id", req.SessionID), zap.Error(err))
		}
	}()

	writeEvent := func(e core.Event) {
		data, _ := json.Marshal(eventFrame{Kind: e.Kind(), Event: e})
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind(), data)
		flusher.Flush()
	}
	done := func() {
		fmt.Fprintf(w, "event: done\ndata: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case e := <-events:
			writeEvent(e)

		case message, ok := <-output:
			if !ok {
				// Events sent before the channel closed may still be buffered.
			drain:
				for {
					select {
					case e := <-events:
						writeEvent(e)
					default:
						break drain
					}
				}
				done()
				return
			}

			resp := ChatResponse{
				Message:   message.Content,
				SessionID: req.SessionID,
				Meta:      message.Meta,
			}

			data, _ := json.Marshal(resp)
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
			flusher.Flush()

		case <-ctx.Done():
			done()
			return
		}
	}
}

// runHandler runs a one-shot pipeline with the request's inputs.
func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.PathValue("pipeline")
	if !runnable(name) {
		s.writeError(w, fmt.Sprintf("unknown pipeline %q", name), http.StatusNotFound)
		return
	}

	var req RunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
	}

	res, err := s.runner.RunPipeline(r.Context(), name, req.Inputs, pipelines.RunOptions{})
	if err != nil {
		s.tel.Logger.Warn("pipeline failed", zap.String("pipeline", name), zap.Error(err))
		s.writeError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func runnable(name string) bool {
	for _, n := range pipelines.Runnable() {
		if n == name {
			return true
		}
	}
	return false
}

// mermaidHandler renders a registered workflow. Without a name it lists
// the registered workflows.
func (s *Server) mermaidHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string][]string{"workflows": s.workflows.List()})
		return
	}

	var opts []workflow.MermaidOption
	if dir := q.Get("dir"); dir != "" {
		opts = append(opts, workflow.WithDirection(dir))
	}
	if conds := q.Get("conds"); conds != "" {
		on, err := strconv.ParseBool(conds)
		if err != nil {
			s.writeError(w, "conds must be a boolean", http.StatusBadRequest)
			return
		}
		opts = append(opts, workflow.WithConditionIndicators(on))
	}

	out, err := s.workflows.Mermaid(name, opts...)
	if errors.Is(err, workflow.ErrNotRegistered) {
		s.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		s.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, out)
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ChatResponse{Error: message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrument tags each request with an X-Request-ID, a span and the request
// metrics.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		span, ctx := s.tel.StartSpan(r.Context(), "http.request", obs.SpanKindChain)
		span.SetAttribute(obs.AttrHTTPMethod, r.Method)
		span.SetAttribute(obs.AttrHTTPRoute, r.URL.Path)
		span.SetAttribute(obs.AttrRequestID, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttribute(obs.AttrHTTPStatus, rec.status)
		var err error
		if rec.status >= 500 {
			err = fmt.Errorf("status %d", rec.status)
		}
		obs.EndSpan(span, err)

		labels := map[string]string{"route": r.URL.Path, "method": r.Method, "status": strconv.Itoa(rec.status)}
		s.tel.Metrics.IncrementRequests(labels)
		s.tel.Metrics.RecordLatency(time.Since(start), labels)
		s.tel.Logger.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(ctx context.Context) error {
	// Start server in a goroutine
	errChan := make(chan error, 1)
	go func() {
		s.tel.Logger.Info("http server starting", zap.Int("port", s.config.Port))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.tel.Logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
