package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"compress-tool-go/internal/config"
	"compress-tool-go/internal/engine"
	"compress-tool-go/internal/ffmpeg"
	"compress-tool-go/internal/logger"
	"compress-tool-go/internal/media"
	"compress-tool-go/internal/metadata"
	"compress-tool-go/internal/statistics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocket message types.
const (
	MsgCompressStarted   = "compress-started"
	MsgCompressProgress  = "compress-progress"
	MsgCompressCompleted = "compress-completed"
	MsgCompressError     = "compress-error"
)

// EngineFactory returns a fresh engine for one job.
type EngineFactory func() *engine.Engine

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	newEngine  EngineFactory
	inspector  *metadata.Inspector
	locator    ffmpeg.Locator
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.Mutex

	// Current operation state
	operationMutex sync.RWMutex
	isRunning      bool
	currentJob     string
	currentStats   *statistics.Statistics
	jobs           map[string]*Job
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type PathRequest struct {
	Path string `json:"path"`
}

type CompressRequest struct {
	InputDir       string `json:"input_dir"`
	OutputDir      string `json:"output_dir,omitempty"`
	ConvertImages  *bool  `json:"convert_images,omitempty"`
	GeneratePoster *bool  `json:"generate_poster,omitempty"`
}

type CompressFileRequest struct {
	InputPath      string `json:"input_path"`
	OutputDir      string `json:"output_dir,omitempty"`
	ConvertImages  *bool  `json:"convert_images,omitempty"`
	GeneratePoster *bool  `json:"generate_poster,omitempty"`
}

// ScanResult lists the media found under a folder.
type ScanResult struct {
	Files      []media.Descriptor `json:"files"`
	TotalSize  int64              `json:"totalSize"`
	ImageCount int                `json:"imageCount"`
	VideoCount int                `json:"videoCount"`
}

// Job tracks one asynchronous folder job.
type Job struct {
	ID        string              `json:"id"`
	InputDir  string              `json:"inputDir"`
	OutputDir string              `json:"outputDir"`
	Status    string              `json:"status"`
	Started   time.Time           `json:"started"`
	Finished  *time.Time          `json:"finished,omitempty"`
	Result    *engine.BatchResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
}

type WSMessage struct {
	Type  string      `json:"type"`
	JobID string      `json:"jobId,omitempty"`
	Data  interface{} `json:"data"`
}

func NewServer(cfg *config.Config, newEngine EngineFactory, inspector *metadata.Inspector, locator ffmpeg.Locator, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		newEngine: newEngine,
		inspector: inspector,
		locator:   locator,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		jobs:      make(map[string]*Job),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")
	api.HandleFunc("/scan", s.handleScan).Methods("POST")
	api.HandleFunc("/scan-file", s.handleScanFile).Methods("POST")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/compress-file", s.handleCompressFile).Methods("POST")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	api.HandleFunc("/encoder", s.handleEncoder).Methods("GET")
	api.HandleFunc("/inspect", s.handleInspect).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// compress-file runs the encode inside the request
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	jobID := s.currentJob
	stats := s.currentStats
	s.operationMutex.RUnlock()

	var statsData interface{}
	if stats != nil {
		statsData = stats.Snapshot()
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"job_id":     jobID,
			"statistics": statsData,
		},
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	if stats == nil {
		s.writeJSON(w, APIResponse{Success: true})
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"summary":  stats.GetSummary(),
			"snapshot": stats.Snapshot(),
			"errors":   stats.GetErrors(),
		},
	})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		s.writeError(w, "Path is required", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(req.Path); err != nil || !info.IsDir() {
		s.writeError(w, "Directory does not exist", http.StatusBadRequest)
		return
	}

	files, err := s.newEngine().Scanner().ScanTree(req.Path)
	if err != nil {
		s.writeMediaError(w, err)
		return
	}

	result := ScanResult{Files: files}
	for _, f := range files {
		result.TotalSize += f.Size
		if f.IsImage() {
			result.ImageCount++
		} else {
			result.VideoCount++
		}
	}
	s.writeJSON(w, APIResponse{Success: true, Data: result})
}

func (s *Server) handleScanFile(w http.ResponseWriter, r *http.Request) {
	var req PathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Path == "" {
		s.writeError(w, "Path is required", http.StatusBadRequest)
		return
	}

	desc, err := s.newEngine().Scanner().ScanOne(req.Path)
	if err != nil {
		s.writeMediaError(w, err)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: desc})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.InputDir == "" {
		s.writeError(w, "Input directory is required", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(req.InputDir); err != nil || !info.IsDir() {
		s.writeError(w, "Input directory does not exist", http.StatusBadRequest)
		return
	}
	if req.OutputDir == "" {
		req.OutputDir = engine.DefaultOutputDir(req.InputDir, true)
	}

	eng := s.newEngine()
	job := &Job{
		ID:        uuid.NewString(),
		InputDir:  req.InputDir,
		OutputDir: req.OutputDir,
		Status:    "running",
		Started:   time.Now(),
	}

	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}
	s.isRunning = true
	s.currentJob = job.ID
	s.currentStats = eng.Stats()
	s.jobs[job.ID] = job
	s.operationMutex.Unlock()

	go s.runCompressAsync(eng, job, s.jobOptions(req.ConvertImages, req.GeneratePoster))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(APIResponse{
		Success: true,
		Message: "Compression started",
		Data:    map[string]string{"job_id": job.ID},
	})
}

func (s *Server) handleCompressFile(w http.ResponseWriter, r *http.Request) {
	var req CompressFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.InputPath == "" {
		s.writeError(w, "Input path is required", http.StatusBadRequest)
		return
	}
	if req.OutputDir == "" {
		req.OutputDir = engine.DefaultOutputDir(req.InputPath, false)
	}

	res, err := s.newEngine().CompressFile(r.Context(), req.InputPath, req.OutputDir, s.jobOptions(req.ConvertImages, req.GeneratePoster))
	if err != nil {
		s.writeMediaError(w, err)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: res})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.operationMutex.RLock()
	job, ok := s.jobs[id]
	var snapshot Job
	if ok {
		snapshot = *job
	}
	s.operationMutex.RUnlock()

	if !ok {
		s.writeError(w, "Job not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: snapshot})
}

func (s *Server) handleEncoder(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    ffmpeg.CheckStatus(r.Context(), s.locator),
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, "Path is required", http.StatusBadRequest)
		return
	}

	info, err := s.inspector.Inspect(path)
	if err != nil {
		s.writeMediaError(w, err)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: info})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runCompressAsync(eng *engine.Engine, job *Job, opts engine.JobOptions) {
	log := logger.ForJob(s.log, job.ID, job.InputDir)
	log.Info("Compression job started")
	s.broadcastWSMessage(MsgCompressStarted, job.ID, map[string]interface{}{
		"input_dir":  job.InputDir,
		"output_dir": job.OutputDir,
	})

	sink := engine.ProgressFunc(func(ev engine.ProgressEvent) {
		s.broadcastWSMessage(MsgCompressProgress, job.ID, ev)
	})
	result, err := eng.CompressTree(context.Background(), job.InputDir, job.OutputDir, opts, sink)

	finished := time.Now()
	s.operationMutex.Lock()
	s.isRunning = false
	job.Finished = &finished
	if err != nil {
		job.Status = "failed"
		job.Error = err.Error()
	} else {
		job.Status = "completed"
		job.Result = result
	}
	s.operationMutex.Unlock()

	if err != nil {
		log.WithError(err).Error("Compression job failed")
		s.broadcastWSMessage(MsgCompressError, job.ID, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	logger.WithSizes(log, result.TotalOriginal, result.TotalCompressed).
		WithField(logger.FieldOutput, result.OutputPath).Info("Compression job completed")
	s.broadcastWSMessage(MsgCompressCompleted, job.ID, result)
}

func (s *Server) jobOptions(convert, poster *bool) engine.JobOptions {
	opts := engine.JobOptions{
		ConvertImages:  s.cfg.Compression.ConvertImages,
		GeneratePoster: s.cfg.Compression.GeneratePoster,
	}
	if convert != nil {
		opts.ConvertImages = *convert
	}
	if poster != nil {
		opts.GeneratePoster = *poster
	}
	return opts
}

func (s *Server) broadcastWSMessage(messageType, jobID string, data interface{}) {
	message := WSMessage{
		Type:  messageType,
		JobID: jobID,
		Data:  data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// gorilla connections allow one concurrent writer
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func (s *Server) clientCount() int {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	return len(s.wsClients)
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}

// writeMediaError maps an error kind to an HTTP status.
func (s *Server) writeMediaError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var merr *media.Error
	if errors.As(err, &merr) {
		switch merr.Kind {
		case media.KindNotFound:
			status = http.StatusNotFound
		case media.KindNotAFile, media.KindUnsupportedType:
			status = http.StatusBadRequest
		case media.KindEncoderNotAvailable:
			status = http.StatusServiceUnavailable
		case media.KindCodec:
			status = http.StatusUnprocessableEntity
		}
	}
	s.writeError(w, err.Error(), status)
}
