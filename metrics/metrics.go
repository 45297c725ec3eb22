// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics exposes the merchant metrics.
package metrics

import (
	"time"

	"github.com/luxfi/metric"

	"github.com/luxfi/zkchannels/utils/wrappers"
)

const (
	reasonLabel  = "reason"
	outcomeLabel = "outcome"
)

var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = noop{}
)

type Metrics interface {
	// Mark that a payment session was opened.
	MarkPaymentStarted()
	// Mark that a payment completed and the new pay token was released.
	MarkPaymentCompleted()
	// Mark that a payment was aborted for the given reason.
	MarkPaymentFailed(reason string)
	// Mark the outcome of a revocation check.
	MarkRevocation(accepted bool)
	// Mark that a close on a revoked state was detected.
	MarkStaleClose()
	// Mark that a channel was opened.
	MarkChannelOpened()
	// Record the time spent verifying a payment proof.
	ObserveVerify(time.Duration)
	// Record the time spent running the payment MPC.
	ObserveMPC(time.Duration)
}

type metricsImpl struct {
	paymentsStarted   metric.Counter
	paymentsCompleted metric.Counter
	paymentsFailed    metric.CounterVec
	revocations       metric.CounterVec
	staleCloses       metric.Counter
	channelsOpened    metric.Counter
	verifyDuration    Averager
	mpcDuration       Averager
}

// New registers the merchant metrics under namespace.
func New(namespace string, registerer metric.Registerer) (Metrics, error) {
	m := &metricsImpl{
		paymentsStarted: metric.NewCounter(metric.CounterOpts{
			Name: metric.AppendNamespace(namespace, "payments_started"),
			Help: "Number of payment sessions opened",
		}),
		paymentsCompleted: metric.NewCounter(metric.CounterOpts{
			Name: metric.AppendNamespace(namespace, "payments_completed"),
			Help: "Number of payments whose pay token was released",
		}),
		paymentsFailed: metric.NewCounterVec(
			metric.CounterOpts{
				Name: metric.AppendNamespace(namespace, "payments_failed"),
				Help: "Number of aborted payments",
			},
			[]string{reasonLabel},
		),
		revocations: metric.NewCounterVec(
			metric.CounterOpts{
				Name: metric.AppendNamespace(namespace, "revocations"),
				Help: "Number of revocation checks by outcome",
			},
			[]string{outcomeLabel},
		),
		staleCloses: metric.NewCounter(metric.CounterOpts{
			Name: metric.AppendNamespace(namespace, "stale_closes"),
			Help: "Number of closes on revoked states",
		}),
		channelsOpened: metric.NewCounter(metric.CounterOpts{
			Name: metric.AppendNamespace(namespace, "channels_opened"),
			Help: "Number of channels marked open",
		}),
	}

	errs := wrappers.Errs{}
	m.verifyDuration = NewAveragerWithErrs(
		namespace,
		"verify_duration",
		"time (in ns) spent verifying payment proofs",
		registerer,
		&errs,
	)
	m.mpcDuration = NewAveragerWithErrs(
		namespace,
		"mpc_duration",
		"time (in ns) spent running the payment mpc",
		registerer,
		&errs,
	)
	errs.Add(
		registerer.Register(metric.AsCollector(m.paymentsStarted)),
		registerer.Register(metric.AsCollector(m.paymentsCompleted)),
		registerer.Register(metric.AsCollector(m.paymentsFailed)),
		registerer.Register(metric.AsCollector(m.revocations)),
		registerer.Register(metric.AsCollector(m.staleCloses)),
		registerer.Register(metric.AsCollector(m.channelsOpened)),
	)
	return m, errs.Err
}

func (m *metricsImpl) MarkPaymentStarted() {
	m.paymentsStarted.Inc()
}

func (m *metricsImpl) MarkPaymentCompleted() {
	m.paymentsCompleted.Inc()
}

func (m *metricsImpl) MarkPaymentFailed(reason string) {
	m.paymentsFailed.With(metric.Labels{
		reasonLabel: reason,
	}).Inc()
}

func (m *metricsImpl) MarkRevocation(accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.revocations.With(metric.Labels{
		outcomeLabel: outcome,
	}).Inc()
}

func (m *metricsImpl) MarkStaleClose() {
	m.staleCloses.Inc()
}

func (m *metricsImpl) MarkChannelOpened() {
	m.channelsOpened.Inc()
}

func (m *metricsImpl) ObserveVerify(d time.Duration) {
	m.verifyDuration.Observe(float64(d))
}

func (m *metricsImpl) ObserveMPC(d time.Duration) {
	m.mpcDuration.Observe(float64(d))
}

// NewNoop returns metrics that record nothing.
func NewNoop() Metrics {
	return noop{}
}

type noop struct{}

func (noop) MarkPaymentStarted()         {}
func (noop) MarkPaymentCompleted()       {}
func (noop) MarkPaymentFailed(string)    {}
func (noop) MarkRevocation(bool)         {}
func (noop) MarkStaleClose()             {}
func (noop) MarkChannelOpened()          {}
func (noop) ObserveVerify(time.Duration) {}
func (noop) ObserveMPC(time.Duration)    {}
