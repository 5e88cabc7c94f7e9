package handlers

import (
	"github.com/gin-gonic/gin"

	"invoicenum/internal/core/apperror"
	"invoicenum/internal/core/security"
	"invoicenum/internal/domain/numbering"
)

// ObservabilityHandler exposes the counter drift report.
type ObservabilityHandler struct {
	*BaseHandler
	observer *numbering.Observer
	flags    security.FeatureFlagProvider
}

func NewObservabilityHandler(base *BaseHandler, observer *numbering.Observer, flags security.FeatureFlagProvider) *ObservabilityHandler {
	return &ObservabilityHandler{BaseHandler: base, observer: observer, flags: flags}
}

// Counters lists the tenant's counters with drift information. Hidden
// behind a feature flag; 404 when disabled.
// GET /internal/numbering/counters
func (h *ObservabilityHandler) Counters(c *gin.Context) {
	ctx := c.Request.Context()
	if h.flags == nil || !h.flags.IsEnabled(ctx, security.FlagCounterObservability) {
		h.Error(c, apperror.NewNotFound("endpoint", c.FullPath()))
		return
	}

	report, err := h.observer.ListCounters(ctx, h.GetTenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, report)
}
