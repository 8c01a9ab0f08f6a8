package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/checkout"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindStock, apperr.KindInFlight, apperr.KindState, apperr.KindEmptyCart:
		return http.StatusConflict
	case apperr.KindGateway:
		return http.StatusBadGateway
	case apperr.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error","message","fields"}. A non-zero view is
// included so the page can re-render the checkout next to the message.
func respondError(c *gin.Context, log logrus.FieldLogger, err error, view checkout.View) {
	ae := apperr.As(err)
	status := statusFor(ae.Kind)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"client_id": clientID(c),
			"path":      c.FullPath(),
		}).Error("request failed")
	}

	body := gin.H{"error": ae.Kind, "message": ae.Message}
	if len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	if ae.Kind == apperr.KindEmptyCart {
		body["redirect"] = "/cart"
	}
	if view.State != "" {
		body["checkout"] = view
	}
	c.JSON(status, body)
}
