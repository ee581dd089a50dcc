package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/timegrid/internal/model"
)

const outcomeSuccess = "success"

var (
	invocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timegrid_invocations_total",
			Help: "Total number of solver invocations by outcome (success or error kind).",
		},
		[]string{"outcome"},
	)

	precheckBlocked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "timegrid_precheck_blocked_total",
			Help: "Invocations rejected by the feasibility pre-check before the engine was started.",
		},
	)
)

func init() {
	prometheus.MustRegister(invocationsTotal)
	prometheus.MustRegister(precheckBlocked)

	invocationsTotal.WithLabelValues(outcomeSuccess)
	for _, k := range []model.Kind{
		model.KindSpawn, model.KindTimeout, model.KindValidation,
		model.KindParse, model.KindRuntime, model.KindUnknown,
	} {
		invocationsTotal.WithLabelValues(string(k))
	}
}

func outcomeOf(res model.Result) string {
	if res.OK() {
		return outcomeSuccess
	}
	return string(res.Error.Kind)
}
