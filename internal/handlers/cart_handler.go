package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/apperr"
	"github.com/imrishuroy/go-grocery-checkout/internal/cart"
	"github.com/imrishuroy/go-grocery-checkout/internal/checkout"
	"github.com/imrishuroy/go-grocery-checkout/internal/validation"
)

type cartResponse struct {
	Lines []cart.Line `json:"lines"`
	Total string      `json:"total"`
}

func newCartResponse(c *cart.Cart) cartResponse {
	lines := c.Lines
	if lines == nil {
		lines = []cart.Line{}
	}
	return cartResponse{Lines: lines, Total: cart.RoundForDisplay(c.Total()).StringFixed(2)}
}

func productFrom(req validation.ProductRequest) cart.Product {
	return cart.Product{
		ProductID:      req.ProductID,
		ProductName:    req.ProductName,
		UnitType:       cart.UnitType(req.UnitType),
		UnitPrice:      req.UnitPrice,
		UnitsAvailable: req.UnitsAvailable,
	}
}

func productIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.New(apperr.KindValidation, "Unknown product.")
	}
	return id, nil
}

// RegisterCartRoutes registers the cart and wishlist routes.
func RegisterCartRoutes(r gin.IRouter, env *checkout.Env, v *validatorv10.Validate, log logrus.FieldLogger) {
	none := checkout.View{}

	// withCart loads the client's cart, applies fn and saves the result.
	withCart := func(c *gin.Context, fn func(*cart.Cart) error) {
		ctx := c.Request.Context()
		store := env.Cart(clientID(c))
		crt, err := store.Load(ctx)
		if err != nil {
			respondError(c, log, err, none)
			return
		}
		if err := fn(crt); err != nil {
			respondError(c, log, err, none)
			return
		}
		if err := store.Save(ctx, crt); err != nil {
			respondError(c, log, err, none)
			return
		}
		c.JSON(http.StatusOK, newCartResponse(crt))
	}

	r.GET("/cart", func(c *gin.Context) {
		crt, err := env.Cart(clientID(c)).Load(c.Request.Context())
		if err != nil {
			respondError(c, log, err, none)
			return
		}
		c.JSON(http.StatusOK, newCartResponse(crt))
	})

	r.POST("/cart/items", func(c *gin.Context) {
		var req validation.ProductRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		units := decimal.NewFromInt(1)
		if req.Units != nil {
			units = *req.Units
		}
		withCart(c, func(crt *cart.Cart) error {
			return crt.Add(productFrom(req), units)
		})
	})

	r.PATCH("/cart/items/:productId", func(c *gin.Context) {
		id, err := productIDParam(c)
		if err != nil {
			respondError(c, log, err, none)
			return
		}
		var req validation.UpdateUnitsRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		withCart(c, func(crt *cart.Cart) error {
			return crt.UpdateUnits(id, req.Units)
		})
	})

	r.DELETE("/cart/items/:productId", func(c *gin.Context) {
		id, err := productIDParam(c)
		if err != nil {
			respondError(c, log, err, none)
			return
		}
		withCart(c, func(crt *cart.Cart) error {
			crt.Remove(id)
			return nil
		})
	})

	r.POST("/cart/items/:productId/save-for-later", func(c *gin.Context) {
		id, err := productIDParam(c)
		if err != nil {
			respondError(c, log, err, none)
			return
		}
		ctx := c.Request.Context()
		store := env.Cart(clientID(c))
		if err := store.SaveForLater(ctx, id); err != nil {
			respondError(c, log, err, none)
			return
		}
		crt, err := store.Load(ctx)
		if err != nil {
			respondError(c, log, err, none)
			return
		}
		c.JSON(http.StatusOK, newCartResponse(crt))
	})

	r.GET("/wishlist", func(c *gin.Context) {
		w, err := env.Cart(clientID(c)).LoadWishlist(c.Request.Context())
		if err != nil {
			respondError(c, log, err, none)
			return
		}
		c.JSON(http.StatusOK, w)
	})

	r.POST("/wishlist/toggle", func(c *gin.Context) {
		var req validation.ProductRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		ctx := c.Request.Context()
		store := env.Cart(clientID(c))
		w, err := store.LoadWishlist(ctx)
		if err != nil {
			respondError(c, log, err, none)
			return
		}
		listed := w.Toggle(productFrom(req))
		if err := store.SaveWishlist(ctx, w); err != nil {
			respondError(c, log, err, none)
			return
		}
		c.JSON(http.StatusOK, gin.H{"listed": listed, "items": w.Items})
	})
}
