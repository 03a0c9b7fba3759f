package handlers

import (
	"fmt"
	"net/http"

	"relayd/internal/platform/repositories"
)

// MetricsHandler exports delivery totals in Prometheus text format without
// pulling in the client library; the numbers come straight from the store.
type MetricsHandler struct {
	deliveries *repositories.DeliveryRepository
}

func NewMetricsHandler(deliveries *repositories.DeliveryRepository) *MetricsHandler {
	return &MetricsHandler{deliveries: deliveries}
}

func (h *MetricsHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	fmt.Fprintf(w, "# HELP relayd_up Is the server up\n")
	fmt.Fprintf(w, "# TYPE relayd_up gauge\n")
	fmt.Fprintf(w, "relayd_up 1\n")

	counts, err := h.deliveries.CountByStatus()
	if err != nil {
		return
	}

	fmt.Fprintf(w, "# HELP relayd_deliveries_total Webhook delivery attempts by status\n")
	fmt.Fprintf(w, "# TYPE relayd_deliveries_total counter\n")
	for status, count := range counts {
		fmt.Fprintf(w, "relayd_deliveries_total{status=%q} %d\n", status, count)
	}
}
