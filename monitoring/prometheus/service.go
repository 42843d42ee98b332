// Package prometheus exposes the process metrics and the health of every
// registered service over HTTP.
package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/preconf-labs/gateway/runtime"
)

var log = logrus.WithField("prefix", "prometheus")

// Service serves /metrics from the default Prometheus registerer and
// /healthz from the statuses of the service registry.
type Service struct {
	server     *http.Server
	registry   *runtime.ServiceRegistry
	failStatus error
}

// NewService sets up the monitoring endpoint on addr. An empty host in addr
// binds every interface.
func NewService(addr string, registry *runtime.ServiceRegistry) *Service {
	s := &Service{registry: registry}
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/healthz", s.healthzHandler)
	s.server = &http.Server{Addr: addr, Handler: router}
	return s
}

func (s *Service) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	statuses := s.registry.Statuses()
	type line struct {
		name   string
		status string
	}
	lines := make([]line, 0, len(statuses))
	hasError := false
	for kind, err := range statuses {
		status := "OK"
		if err != nil {
			hasError = true
			status = "ERROR " + err.Error()
		}
		lines = append(lines, line{name: kind.String(), status: status})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].name < lines[j].name })
	if hasError {
		w.WriteHeader(http.StatusInternalServerError)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintf(w, "%s: %s\n", l.name, l.status); err != nil {
			log.WithError(err).Error("Could not write healthz response")
			return
		}
	}
}

// Start begins serving in the background.
func (s *Service) Start() {
	log.WithField("endpoint", s.server.Addr).Info("Starting monitoring endpoint")
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Errorf("Could not serve on %s", s.server.Addr)
			s.failStatus = err
		}
	}()
}

// Stop shuts the server down, waiting briefly for in-flight scrapes.
func (s *Service) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Status reports a listen failure, if any.
func (s *Service) Status() error {
	return s.failStatus
}
