// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"

	"github.com/luxfi/zkchannels/utils/wrappers"
)

// Averager tracks the count and sum of observations, from which a mean can
// be derived.
type Averager interface {
	Observe(float64)
}

type averager struct {
	count metric.Counter
	sum   metric.Gauge
}

func NewAverager(namespace, name, desc string, reg metric.Registerer) (Averager, error) {
	errs := wrappers.Errs{}
	a := NewAveragerWithErrs(namespace, name, desc, reg, &errs)
	return a, errs.Err
}

func NewAveragerWithErrs(namespace, name, desc string, reg metric.Registerer, errs *wrappers.Errs) Averager {
	name = metric.AppendNamespace(namespace, name)
	a := averager{
		count: metric.NewCounter(metric.CounterOpts{
			Name: metric.AppendNamespace(name, "count"),
			Help: "Total # of observations of " + desc,
		}),
		sum: metric.NewGauge(metric.GaugeOpts{
			Name: metric.AppendNamespace(name, "sum"),
			Help: "Sum of " + desc,
		}),
	}
	errs.Add(
		reg.Register(metric.AsCollector(a.count)),
		reg.Register(metric.AsCollector(a.sum)),
	)
	return &a
}

func (a *averager) Observe(v float64) {
	a.count.Inc()
	a.sum.Add(v)
}
