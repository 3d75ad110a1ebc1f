package httpserver

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"chatcommerce/internal/domain"
)

const apiKeyHeader = "X-API-Key"

func apiKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		got := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

type discountRequest struct {
	Percentage *float64 `json:"percentage"`
}

type statusRequest struct {
	Command string `json:"command"`
}

func getDiscountHandler(svc discountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		pct, err := svc.Get(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"percentage": pct})
	}
}

func putDiscountHandler(svc discountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req discountRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Percentage == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "percentage is required"})
			return
		}
		if err := svc.Set(c.Request.Context(), *req.Percentage); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"percentage": *req.Percentage})
	}
}

func deleteDiscountHandler(svc discountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Clear(c.Request.Context()); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func orderStatusHandler(orders orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "command is required"})
			return
		}
		o, err := orders.UpdateOrderStatusFromCommand(c.Request.Context(), req.Command)
		if err != nil && o == nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

func getOrderHandler(orders orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := orders.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// listOrdersHandler returns the active orders, filtered by the optional
// branch query parameter.
func listOrdersHandler(orders orderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := orders.List(c.Request.Context(), c.Query("branch"))
		if err != nil {
			writeError(c, err)
			return
		}
		if list == nil {
			list = []domain.Order{}
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	}
}

// writeError maps classified domain errors onto HTTP status codes.
func writeError(c *gin.Context, err error) {
	var illegal *domain.IllegalTransitionError
	switch {
	case errors.As(err, &illegal):
		c.JSON(http.StatusConflict, gin.H{"error": illegal.Error()})
		return
	case errors.Is(err, domain.ErrInvalidCommandFormat), errors.Is(err, domain.ErrInvalidDiscount):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case domain.KindValidation, domain.KindPolicy:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case domain.KindUpstream:
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream failure"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
