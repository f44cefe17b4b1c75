// monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wfunc/picword/logger"
	"github.com/wfunc/picword/room"
)

type Metrics struct {
	OnlinePlayers  prometheus.Gauge
	ActiveRooms    prometheus.Gauge
	Requests       *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	Answers        *prometheus.CounterVec
	RoundsClosed   *prometheus.CounterVec
	GamesFinished  prometheus.Counter
	LedgerDropped  prometheus.Counter
	LedgerFailures *prometheus.CounterVec
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OnlinePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_players",
			Help:      "Number of connected websocket sessions",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of active rooms",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of boundary requests by operation and result code",
		}, []string{"op", "code"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_latency_seconds",
			Help:      "Request processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"op"}),
		Answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Judged answers",
		}, []string{"correct"}),
		RoundsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_closed_total",
			Help:      "Closed rounds by reason",
		}, []string{"reason"}),
		GamesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Games played to the end",
		}),
		LedgerDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_dropped_total",
			Help:      "Score entries dropped because the ledger queue was full or closed",
		}),
		LedgerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_failures_total",
			Help:      "Failed ledger writes",
		}, []string{"op"}),
	}

	reg.MustRegister(
		m.OnlinePlayers,
		m.ActiveRooms,
		m.Requests,
		m.RequestLatency,
		m.Answers,
		m.RoundsClosed,
		m.GamesFinished,
		m.LedgerDropped,
		m.LedgerFailures,
	)

	return m
}

type Monitor struct {
	metrics      *Metrics
	registry     *prometheus.Registry
	startTime    time.Time
	requestCount int64
	mutex        sync.Mutex
	server       *http.Server
}

// NewMonitor 创建监控器，指标注册在独立的 registry 上
func NewMonitor(namespace string) *Monitor {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Monitor{
		metrics:   NewMetrics(namespace, reg),
		registry:  reg,
		startTime: time.Now(),
	}
}

func (m *Monitor) Metrics() *Metrics { return m.metrics }

func (m *Monitor) Registry() *prometheus.Registry { return m.registry }

// Handler serves /metrics and /debug/vars.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	return mux
}

var publishOnce sync.Once

func (m *Monitor) StartServer(addr string) {
	// 添加expvar指标
	publishOnce.Do(func() {
		expvar.Publish("uptime", expvar.Func(func() interface{} {
			return time.Since(m.startTime).Seconds()
		}))

		expvar.Publish("requests", expvar.Func(func() interface{} {
			m.mutex.Lock()
			defer m.mutex.Unlock()
			return m.requestCount
		}))
	})

	m.server = &http.Server{Addr: addr, Handler: m.Handler()}
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("metrics server failed: %v", err)
		}
	}()
	logger.Log.Infof("Metrics server started on %s", addr)
}

func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}

func (m *Monitor) IncOnlinePlayers() {
	m.metrics.OnlinePlayers.Inc()
}

func (m *Monitor) DecOnlinePlayers() {
	m.metrics.OnlinePlayers.Dec()
}

func (m *Monitor) SetActiveRooms(count int) {
	m.metrics.ActiveRooms.Set(float64(count))
}

// ObserveRequest 记录一次边界操作
func (m *Monitor) ObserveRequest(op, code string, duration time.Duration) {
	m.metrics.Requests.WithLabelValues(op, code).Inc()
	m.metrics.RequestLatency.WithLabelValues(op).Observe(duration.Seconds())
	m.mutex.Lock()
	m.requestCount++
	m.mutex.Unlock()
}

// LedgerDropped implements persistence.Observer.
func (m *Monitor) LedgerDropped() {
	m.metrics.LedgerDropped.Inc()
}

// LedgerFailed implements persistence.Observer.
func (m *Monitor) LedgerFailed(op string) {
	m.metrics.LedgerFailures.WithLabelValues(op).Inc()
}

// Notify implements room.Notifier.
func (m *Monitor) Notify(evt room.Event) {
	switch evt.Type {
	case room.EventRoomCreated, room.EventRoomRemoved:
		if data, ok := evt.Data.(map[string]int); ok {
			m.SetActiveRooms(data["active_rooms"])
		}
	case room.EventAnswerSubmitted:
		if data, ok := evt.Data.(room.AnswerData); ok {
			if data.Correct {
				m.metrics.Answers.WithLabelValues("true").Inc()
			} else {
				m.metrics.Answers.WithLabelValues("false").Inc()
			}
		}
	case room.EventRoundClosed:
		if data, ok := evt.Data.(room.RoundClosedData); ok {
			m.metrics.RoundsClosed.WithLabelValues(data.Reason).Inc()
		}
	case room.EventGameFinished:
		m.metrics.GamesFinished.Inc()
	}
}
