// Package stats wires the paxos package's Metrics interface into
// prometheus collectors: counters for proposal, vote, commit and drop
// events, and a gauge for pending proposals.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements paxos.Metrics. It is defined here rather than in
// paxos to keep the prometheus dependency out of the state-machine
// package's import graph.
type Recorder struct {
	proposalsEmitted prometheus.Counter
	votesProcessed   prometheus.Counter
	committed        prometheus.Counter
	dropped          *prometheus.CounterVec
	pendingGauge     prometheus.Gauge
}

// NewRecorder builds and registers the quorumd metric family on reg. Use
// prometheus.NewRegistry() for isolated tests, or
// prometheus.DefaultRegisterer in production.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		proposalsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quorumd",
			Subsystem: "master",
			Name:      "proposals_emitted_total",
			Help:      "Proposals broadcast to workers.",
		}),
		votesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quorumd",
			Subsystem: "master",
			Name:      "votes_processed_total",
			Help:      "Votes tallied by the master, including those short of quorum.",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quorumd",
			Subsystem: "master",
			Name:      "committed_total",
			Help:      "Proposals that reached quorum and were written to the log backend.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quorumd",
			Subsystem: "master",
			Name:      "dropped_total",
			Help:      "Inbound mail dropped by the master, by reason.",
		}, []string{"reason"}),
		pendingGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quorumd",
			Subsystem: "master",
			Name:      "pending_proposals",
			Help:      "Proposals awaiting quorum.",
		}),
	}
	reg.MustRegister(r.proposalsEmitted, r.votesProcessed, r.committed, r.dropped, r.pendingGauge)
	return r
}

func (r *Recorder) ProposalEmitted() { r.proposalsEmitted.Inc() }
func (r *Recorder) VoteProcessed()   { r.votesProcessed.Inc() }
func (r *Recorder) Committed()       { r.committed.Inc() }
func (r *Recorder) Dropped(reason string) {
	r.dropped.WithLabelValues(reason).Inc()
}

// SetPending reports the master's current vote-table size. Called from
// the driver loop after each DrainVotes pass rather than wired through
// the Metrics interface, since it is a gauge sampled from state rather
// than an event.
func (r *Recorder) SetPending(n int) {
	r.pendingGauge.Set(float64(n))
}
