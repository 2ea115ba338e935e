// Package bedsvc is a development implementation of the bed service REST
// contract. It keeps beds in memory and protects them with HS256 bearer
// tokens so the dashboard can be exercised end to end without the hospital
// backend.
package bedsvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kingrea/wardboard/internal/ward"
)

// ServerStatus reports runtime lifecycle states for the HTTP server.
type ServerStatus string

const (
	StatusStarting ServerStatus = "starting"
	StatusReady    ServerStatus = "ready"
	StatusDraining ServerStatus = "draining"
)

// Server wraps the HTTP listener and gin router backing the bed service.
type Server struct {
	settings Settings
	store    *Store
	tokens   *Tokens
	logger   *zap.Logger
	clock    func() time.Time

	mu        sync.RWMutex
	server    *http.Server
	listener  net.Listener
	status    ServerStatus
	startTime time.Time
}

// Option customizes server construction.
type Option func(*Server)

// WithStore replaces the default store built from Settings.BedCount.
func WithStore(store *Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock allows tests to control timestamps and token expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewServer prepares a bed service using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	settings.fillDefaults()
	s := &Server{
		settings: settings,
		logger:   zap.NewNop(),
		clock:    func() time.Time { return time.Now().UTC() },
		status:   StatusStarting,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.store == nil {
		s.store = NewStore(settings.BedCount)
	}
	s.store.clock = s.clock
	s.tokens = NewTokens(settings.JWTSecret, settings.TokenTTL)
	s.tokens.clock = s.clock
	return s
}

// Store exposes the ward state, mainly for tests and seeding.
func (s *Server) Store() *Store { return s.store }

// Tokens exposes the token service so operators can issue dev tokens.
func (s *Server) Tokens() *Tokens { return s.tokens }

// Handler builds the gin router. It is exposed so tests can drive the
// service through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())
	router.GET("/health", s.handleHealth)
	api := router.Group("/api", requireNurse(s.tokens))
	api.GET("/beds", s.handleListBeds)
	api.POST("/beds/assign", s.handleAssign)
	api.DELETE("/beds/:id", s.handleDeassign)
	return router
}

// Start binds the TCP listener and begins serving HTTP traffic.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("bedsvc: server is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("bedsvc: server already started")
	}
	addr := s.settings.Address()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bedsvc: listen %s: %w", addr, err)
	}
	s.listener = listener
	s.startTime = s.clock()
	server := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		IdleTimeout:  s.settings.IdleTimeout,
	}
	if ctx != nil {
		server.BaseContext = func(net.Listener) context.Context { return ctx }
	}
	s.server = server
	s.status = StatusReady
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("bedsvc: serve error", zap.Error(err))
		}
	}()
	s.logger.Info("bedsvc: listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil || s.server == nil {
		return nil
	}
	s.status = StatusDraining
	deadline := ctx
	if deadline == nil {
		var cancel context.CancelFunc
		deadline, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := s.server.Shutdown(deadline); err != nil {
		return err
	}
	s.listener = nil
	s.server = nil
	return nil
}

// Addr returns the bound TCP address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// BaseURL returns the HTTP base URL (scheme + host:port) for the running server.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return s.settings.URL()
	}
	return "http://" + addr
}

// Status reports the server's lifecycle state.
func (s *Server) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) uptimeSeconds() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startTime.IsZero() {
		return 0
	}
	return int64(s.clock().Sub(s.startTime).Seconds())
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("bedsvc: request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	beds := s.store.Beds()
	occupied := 0
	for _, bed := range beds {
		if bed.Occupied() {
			occupied++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         string(s.Status()),
		"beds":           len(beds),
		"occupied":       occupied,
		"uptime_seconds": s.uptimeSeconds(),
	})
}

func (s *Server) handleListBeds(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Beds())
}

type assignRequest struct {
	PatientData *struct {
		FullName         string  `json:"fullName"`
		Age              *int    `json:"age"`
		BirthDate        string  `json:"birthDate"`
		Sex              string  `json:"sex"`
		Condition        string  `json:"condition"`
		AdmitDateTime    string  `json:"admitDateTime"`
		ContactDetails   string  `json:"contactDetails"`
		FrequencyMeasure string  `json:"frequencyMeasure"`
		BedID            ward.ID `json:"bedId"`
	} `json:"patientData"`
}

func (s *Server) handleAssign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PatientData == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"patientData\": {...}}"})
		return
	}
	pd := req.PatientData
	if pd.BedID.IsZero() {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "bedId is required"})
		return
	}
	// The service re-validates with the same rules the dashboard uses.
	form := ward.NewIntakeForm()
	_ = form.Set(ward.FieldFullName, pd.FullName)
	if pd.Age != nil {
		_ = form.Set(ward.FieldAge, fmt.Sprint(*pd.Age))
	}
	_ = form.Set(ward.FieldBirthDate, pd.BirthDate)
	_ = form.Set(ward.FieldSex, pd.Sex)
	_ = form.Set(ward.FieldCondition, pd.Condition)
	_ = form.Set(ward.FieldAdmitDateTime, pd.AdmitDateTime)
	_ = form.Set(ward.FieldContactDetails, pd.ContactDetails)
	_ = form.Set(ward.FieldFrequencyMeasure, pd.FrequencyMeasure)
	intake, err := form.Intake()
	if err != nil {
		var verr *ward.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": strings.ReplaceAll(verr.Message(), "\n\n", " "), "fields": append(verr.Missing, verr.Invalid...)})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	patientID, err := s.store.Assign(pd.BedID.String(), intake)
	if err != nil {
		s.writeStoreError(c, err)
		return
	}
	nurse, _ := c.Get(nurseKey)
	s.logger.Info("bedsvc: patient admitted",
		zap.String("bed_id", pd.BedID.String()),
		zap.String("patient_id", patientID),
		zap.Any("nurse", nurse),
	)
	c.JSON(http.StatusCreated, gin.H{"bedId": pd.BedID, "patientId": patientID})
}

func (s *Server) handleDeassign(c *gin.Context) {
	bedID := c.Param("id")
	if err := s.store.Deassign(bedID); err != nil {
		s.writeStoreError(c, err)
		return
	}
	s.logger.Info("bedsvc: patient discharged", zap.String("bed_id", bedID))
	c.JSON(http.StatusOK, gin.H{"bedId": bedID, "status": "vacant"})
}

func (s *Server) writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBedNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBedOccupied), errors.Is(err, ErrBedVacant):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bed service failure"})
	}
}
