package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels besides the SubmitErrorKind values.
const (
	outcomeSuccess    = "success"
	outcomeValidation = "validation"
	outcomeReload     = "reload_failed"
)

var submissions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_rating_submissions_total",
		Help: "Review mutations by entity kind, mode (create, update, delete) and outcome",
	},
	[]string{"kind", "mode", "outcome"},
)
