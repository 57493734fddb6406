package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"neodymium/events"
	"neodymium/models"
	"neodymium/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "neodymium"

// Recorder collects bot metrics in its own Prometheus registry
type Recorder struct {
	registry *prometheus.Registry

	reactions     *prometheus.CounterVec
	roleChanges   *prometheus.CounterVec
	commands      *prometheus.CounterVec
	configChanges *prometheus.CounterVec
	guilds        prometheus.Counter
}

var _ service.Metrics = (*Recorder)(nil)

// NewRecorder creates a recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		reactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reactions_total",
			Help:      "Reaction events by classified action.",
		}, []string{"action"}),
		roleChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_changes_total",
			Help:      "Role grants and revocations triggered by reactions.",
		}, []string{"change", "result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Administrator commands by name and outcome.",
		}, []string{"command", "result"}),
		configChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guild_config_changes_total",
			Help:      "Persisted guild configuration changes by operation.",
		}, []string{"operation"}),
		guilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guilds_registered_total",
			Help:      "Guilds registered since startup.",
		}),
	}

	r.registry.MustRegister(
		r.reactions,
		r.roleChanges,
		r.commands,
		r.configChanges,
		r.guilds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// RecordReaction counts a classified reaction
func (r *Recorder) RecordReaction(action models.ActionKind) {
	r.reactions.WithLabelValues(string(action)).Inc()
}

// RecordRoleChange counts a grant or revoke attempt
func (r *Recorder) RecordRoleChange(change models.RoleChange, err error) {
	r.roleChanges.WithLabelValues(string(change), resultLabel(err)).Inc()
}

// RecordCommand counts an executed command
func (r *Recorder) RecordCommand(command string, err error) {
	r.commands.WithLabelValues(command, resultLabel(err)).Inc()
}

// Subscribe counts store events published on bus
func (r *Recorder) Subscribe(bus *events.Bus) {
	bus.Subscribe(events.EventTypeGuildConfigChanged, func(ctx context.Context, event events.Event) {
		if e, ok := event.(events.GuildConfigChangedEvent); ok {
			r.configChanges.WithLabelValues(e.Operation).Inc()
		}
	})
	bus.Subscribe(events.EventTypeGuildRegistered, func(ctx context.Context, event events.Event) {
		r.guilds.Inc()
	})
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, service.ErrBadInput):
		return "bad_input"
	case errors.Is(err, service.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, service.ErrNotFound):
		return "not_found"
	case errors.Is(err, service.ErrConflict):
		return "conflict"
	case errors.Is(err, service.ErrPersistence):
		return "persistence_failure"
	default:
		return "error"
	}
}

// Server serves the /metrics endpoint
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server listening on addr
func NewServer(addr string, recorder *Recorder) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(recorder.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background until Shutdown is called
func (s *Server) Start() {
	go func() {
		log.Infof("Metrics server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("Metrics server error: %v", err)
		}
	}()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
