package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/checkout"
	"github.com/imrishuroy/go-grocery-checkout/internal/orders"
	"github.com/imrishuroy/go-grocery-checkout/internal/validation"
)

// RegisterCheckoutRoutes registers the checkout flow routes.
func RegisterCheckoutRoutes(r gin.IRouter, env *checkout.Env, v *validatorv10.Validate, log logrus.FieldLogger) {
	run := func(c *gin.Context, op func(ctx context.Context, m *checkout.Machine) (checkout.View, error)) {
		view, err := op(c.Request.Context(), env.ForClient(clientID(c)))
		if err != nil {
			respondError(c, log, err, view)
			return
		}
		c.JSON(http.StatusOK, view)
	}

	r.POST("/checkout/start", func(c *gin.Context) {
		run(c, func(ctx context.Context, m *checkout.Machine) (checkout.View, error) {
			return m.Start(ctx)
		})
	})

	// The gateway sends the browser back here with ?payment=success|cancel.
	r.GET("/checkout", func(c *gin.Context) {
		query := c.Request.URL.Query()
		run(c, func(ctx context.Context, m *checkout.Machine) (checkout.View, error) {
			if query.Get("payment") != "" {
				return m.ResumeFromRedirect(ctx, query)
			}
			return m.View(ctx)
		})
	})

	r.PUT("/checkout/details", func(c *gin.Context) {
		var req validation.CheckoutDetailsRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		det := checkout.Details{
			CustomerName:  req.CustomerName,
			Email:         req.Email,
			Phone:         req.Phone,
			PaymentMethod: orders.PaymentMethod(req.PaymentMethod),
			Notes:         req.Notes,
			PickupDate:    req.PickupDate,
			PickupTime:    req.PickupTime,
			Username:      req.Username,
		}
		run(c, func(ctx context.Context, m *checkout.Machine) (checkout.View, error) {
			return m.UpdateDetails(ctx, det)
		})
	})

	r.POST("/checkout/advance", func(c *gin.Context) {
		run(c, func(ctx context.Context, m *checkout.Machine) (checkout.View, error) {
			return m.Advance(ctx)
		})
	})

	r.POST("/checkout/back", func(c *gin.Context) {
		run(c, func(ctx context.Context, m *checkout.Machine) (checkout.View, error) {
			return m.Back(ctx)
		})
	})

	r.POST("/checkout/submit", func(c *gin.Context) {
		run(c, func(ctx context.Context, m *checkout.Machine) (checkout.View, error) {
			return m.Submit(ctx)
		})
	})
}
