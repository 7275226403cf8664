package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type HTTPServer interface {
	ListenAndServe() error
	ListenAndServeTLS(certFile, keyFile string) error
	Shutdown(ctx context.Context) error
}

type TLSFiles struct {
	CertFile string
	KeyFile  string
}

// HTTPServerService adapts an *http.Server to suture.Service. A nil tls
// serves plain HTTP.
type HTTPServerService struct {
	server          HTTPServer
	tls             *TLSFiles
	shutdownTimeout time.Duration
}

func NewHTTPServerService(server HTTPServer, tls *TLSFiles, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{
		server:          server,
		tls:             tls,
		shutdownTimeout: shutdownTimeout,
	}
}

func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if h.tls != nil {
			err = h.server.ListenAndServeTLS(h.tls.CertFile, h.tls.KeyFile)
		} else {
			err = h.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}

		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string {
	return "http-server"
}
