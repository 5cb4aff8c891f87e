package echo

import (
	"context"
	"errors"
	"net/http"

	echofw "github.com/labstack/echo/v4"
	"github.com/vibepay/newebpay-bridge/internal/utils/config"
	"go.uber.org/zap"
)

type Server struct {
	echo   *echofw.Echo
	config *config.Config
	log    *zap.Logger
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echofw.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	if cfg.TrustProxy {
		e.IPExtractor = echofw.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echofw.ExtractIPDirect()
	}

	ConfigureRoutes(e, deps)

	return &Server{
		echo:   e,
		config: cfg,
		log:    deps.Log,
	}
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves until ctx is cancelled, then drains in-flight requests within
// the graceful timeout. The returned channel is closed once shutdown finishes.
func (s *Server) Start(ctx context.Context) <-chan error {
	errC := make(chan error, 2)

	go func() {
		if err := s.echo.Start(":" + s.config.AppPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.GracefulTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			errC <- err
		}
		close(errC)
	}()

	s.log.Info("server started", zap.String("port", s.config.AppPort))
	return errC
}
