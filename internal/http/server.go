// README: API server; owns the net/http server and its graceful shutdown.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"newber/internal/modules/identity"
	"newber/internal/modules/pricing"
	"newber/internal/modules/rating"
	"newber/internal/modules/ride"
	"newber/internal/modules/user"
)

type ServerDeps struct {
	Users    *user.Service
	Ratings  *rating.Service
	Pricing  *pricing.Service
	Rides    *ride.Service
	Verifier identity.TokenVerifier
	Log      logrus.FieldLogger
}

type Server struct {
	srv *http.Server
	log logrus.FieldLogger
}

func NewServer(addr string, deps ServerDeps) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: deps.Log,
	}
}

// Run serves until ctx is done, then drains in-flight requests for up to 10 seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("http server listening")
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
