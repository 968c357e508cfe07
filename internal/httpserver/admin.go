package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	custrepo "storefront/internal/repository/customer"
	productrepo "storefront/internal/repository/product"
	productsvc "storefront/internal/service/product"
)

func (h *handlers) adminListProducts(c *gin.Context) {
	f := listFilter(c)
	f.Latest = true
	if f.PerPage <= 0 {
		f.PerPage = productrepo.AdminPerPage
	}
	page, err := h.deps.Products.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) adminCreateProduct(c *gin.Context) {
	var in productsvc.ProductInput
	if !bindJSON(c, "product.create", &in) {
		return
	}
	p, err := h.deps.Products.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": p})
}

func (h *handlers) adminUpdateProduct(c *gin.Context) {
	id, ok := int64Param(c, "id", "product")
	if !ok {
		return
	}
	var patch productsvc.ProductPatch
	if !bindJSON(c, "product.update", &patch) {
		return
	}
	p, err := h.deps.Products.Update(c.Request.Context(), id, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (h *handlers) adminDeleteProduct(c *gin.Context) {
	id, ok := int64Param(c, "id", "product")
	if !ok {
		return
	}
	if err := h.deps.Products.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) adminListUsers(c *gin.Context) {
	page, err := h.deps.Customers.List(c.Request.Context(), custrepo.ListFilter{
		Search:  c.Query("search"),
		Page:    intQuery(c, "page"),
		PerPage: intQuery(c, "per_page"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) adminGetUser(c *gin.Context) {
	cust, err := h.deps.Customers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": cust})
}

func (h *handlers) adminDeleteUser(c *gin.Context) {
	if err := h.deps.Customers.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
