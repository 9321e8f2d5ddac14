package normalize

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var payloadShapes = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storefront_rating_payload_shapes_total",
		Help: "Ratings payloads received from the backend, by entity kind and classified shape",
	},
	[]string{"kind", "shape"},
)
