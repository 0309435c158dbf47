// Package metrics exposes Prometheus counters for the session lifecycle.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gigan_session"

type Recorder struct {
	logins   prometheus.Counter
	logouts  *prometheus.CounterVec
	adopted  prometheus.Counter
	requests *prometheus.CounterVec
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		logins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Sessions started in this tab.",
		}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logouts_total",
			Help:      "Sessions ended in this tab, by reason.",
		}, []string{"reason"}),
		adopted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adopted_total",
			Help:      "Sessions adopted from another tab.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intercepted_requests_total",
			Help:      "Outbound requests seen by the interceptor, by outcome.",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{r.logins, r.logouts, r.adopted, r.requests} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) Login() {
	if r == nil {
		return
	}
	r.logins.Inc()
}

func (r *Recorder) Logout(reason string) {
	if r == nil {
		return
	}
	r.logouts.WithLabelValues(reason).Inc()
}

func (r *Recorder) Adopted() {
	if r == nil {
		return
	}
	r.adopted.Inc()
}

func (r *Recorder) Request(outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(outcome).Inc()
}
