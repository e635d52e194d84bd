// Package httpapi is the HTTP boundary: submit login jobs, poll their status,
// and run blocking publish uploads. Every route sits behind basic auth.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autopub/internal/dispatch"
	"autopub/internal/status"
	"autopub/pkg/logx"
)

type Config struct {
	Addr string
	// Username/Password guard every route. Empty credentials refuse to
	// serve rather than serving open.
	Username string
	Password string

	ReadTimeout     time.Duration // default 10m, uploads are large
	ShutdownTimeout time.Duration // default 10s
}

// Dispatcher is the job-submission surface the handlers need.
type Dispatcher interface {
	SubmitLogin(ctx context.Context, platformID, account, phone string) string
	SubmitPublish(ctx context.Context, req dispatch.PublishRequest) error
}

type Server struct {
	cfg      Config
	disp     Dispatcher
	statuses *status.Store
	stager   Stager
	log      logx.Logger

	srv *http.Server
}

func NewServer(cfg Config, disp Dispatcher, statuses *status.Store, stager Stager, log logx.Logger) (*Server, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("api credentials not configured")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Server{cfg: cfg, disp: disp, statuses: statuses, stager: stager, log: log}
	s.srv = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.router(),
		ReadTimeout: cfg.ReadTimeout,
	}
	return s, nil
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), s.accessLog())
	r.Use(gin.BasicAuth(gin.Accounts{s.cfg.Username: s.cfg.Password}))

	r.POST("/login", s.handleLogin)
	r.GET("/login/status", s.handleLoginStatus)
	r.POST("/upload", s.handleUpload)
	return r
}

// Start serves until the listener fails or Shutdown is called. It blocks.
func (s *Server) Start() error {
	s.log.Info("http api listening", logx.String("addr", s.cfg.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(sctx)
}
