package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ordersvc "storefront/internal/service/order"
)

func (h *handlers) checkout(c *gin.Context) {
	var in ordersvc.PlaceOrderInput
	if !bindJSON(c, "order.place", &in) {
		return
	}
	o, err := h.deps.Orders.PlaceOrder(c.Request.Context(), visitorFrom(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully!", "order": o})
}

func (h *handlers) getOrder(c *gin.Context) {
	id, ok := int64Param(c, "id", "order")
	if !ok {
		return
	}
	o, err := h.deps.Orders.Get(c.Request.Context(), visitorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *handlers) myOrders(c *gin.Context) {
	orders, err := h.deps.Orders.ListForCustomer(c.Request.Context(), visitorFrom(c).CustomerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}
