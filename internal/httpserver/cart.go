package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *handlers) getCart(c *gin.Context) {
	snap, err := h.deps.Carts.Get(c.Request.Context(), visitorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *handlers) cartCount(c *gin.Context) {
	n, err := h.deps.Carts.ItemCount(c.Request.Context(), visitorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *handlers) addCartItem(c *gin.Context) {
	productID, ok := int64Param(c, "productId", "product")
	if !ok {
		return
	}
	var req quantityRequest
	if !bindJSON(c, "cart.add", &req) {
		return
	}
	snap, err := h.deps.Carts.AddItem(c.Request.Context(), visitorFrom(c), productID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product added to cart.", "cart": snap})
}

func (h *handlers) updateCartItem(c *gin.Context) {
	var req quantityRequest
	if !bindJSON(c, "cart.update", &req) {
		return
	}
	snap, err := h.deps.Carts.UpdateItem(c.Request.Context(), visitorFrom(c), c.Param("itemId"), req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart updated.", "cart": snap})
}

func (h *handlers) removeCartItem(c *gin.Context) {
	snap, err := h.deps.Carts.RemoveItem(c.Request.Context(), visitorFrom(c), c.Param("itemId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart.", "cart": snap})
}

func (h *handlers) clearCart(c *gin.Context) {
	if err := h.deps.Carts.Clear(c.Request.Context(), visitorFrom(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
