package middleware

import (
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/vpnshop/core/metrics"
)

// MetricsMiddleware counts inbound updates by kind.
func MetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.Updates.WithLabelValues(UpdateKind(c.Update())).Inc()
		return next(c)
	}
}
