// SPDX-License-Identifier: MIT

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainconf_resolutions_total",
		Help: "Configuration resolutions by outcome",
	}, []string{"result"}) // result=success|failure

	resolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trainconf_resolution_duration_seconds",
		Help:    "Time to compose, resolve and validate one configuration",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	configReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trainconf_config_reloads_total",
		Help: "Configuration reloads by outcome",
	}, []string{"result"}) // result=success|failure

	fragmentsLoadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "trainconf_fragments_loaded_total",
		Help: "Fragments applied across all compositions",
	})
)

// RecordResolution records the outcome and duration of one load.
func RecordResolution(err error, took time.Duration) {
	resolutionsTotal.WithLabelValues(result(err)).Inc()
	resolutionDuration.Observe(took.Seconds())
}

// RecordReload records the outcome of a holder reload.
func RecordReload(err error) {
	configReloadsTotal.WithLabelValues(result(err)).Inc()
}

// AddFragmentsLoaded counts fragments applied by a composition.
func AddFragmentsLoaded(n int) {
	if n > 0 {
		fragmentsLoadedTotal.Add(float64(n))
	}
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
