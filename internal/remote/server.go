package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"modscan/internal/shared"
)

// ScanFunc produces this host's hits for one peer request.
type ScanFunc func(ctx context.Context) ([]shared.DetectionHit, error)

// NewHandler serves GET /scan and GET /healthz.
func NewHandler(scan ScanFunc, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc(ScanPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		start := time.Now()
		hits, err := scan(r.Context())
		if err != nil {
			log.Warn("peer scan failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			http.Error(w, "scan failed", http.StatusInternalServerError)
			return
		}
		if hits == nil {
			hits = []shared.DetectionHit{}
		}

		log.Info("peer scan served",
			zap.String("remote", r.RemoteAddr),
			zap.Int("hits", len(hits)),
			zap.Duration("took", time.Since(start)))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hits)
	})
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	return mux
}

// Serve runs handler on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, handler http.Handler, log *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ServeListener(ctx, ln, handler, log)
}

// ServeListener is Serve on an existing listener.
func ServeListener(ctx context.Context, ln net.Listener, handler http.Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("peer scan server listening", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
