package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet)

	return r
}

// Serve starts the metrics endpoint on address and stops it when ctx is done.
func Serve(ctx context.Context, wg *sync.WaitGroup, address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("can't listen on %s: %w", address, err)
	}

	srv := &http.Server{
		Handler:           NewRouter(),
		ReadHeaderTimeout: shutdownTimeout,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Println("[ERROR] metrics server:", serveErr)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Println("[ERROR] metrics server shutdown:", shutdownErr)
		}
	}()

	log.Printf("[INFO] Metrics available at http://%s/metrics", ln.Addr())

	return nil
}
