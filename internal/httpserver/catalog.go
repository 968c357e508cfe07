package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	productrepo "storefront/internal/repository/product"
)

func listFilter(c *gin.Context) productrepo.ListFilter {
	offers, _ := strconv.ParseBool(c.Query("special_offers"))
	return productrepo.ListFilter{
		CategorySlug:  c.Query("category"),
		SpecialOffers: offers,
		Search:        c.Query("search"),
		Page:          intQuery(c, "page"),
		PerPage:       intQuery(c, "per_page"),
	}
}

func (h *handlers) listProducts(c *gin.Context) {
	page, err := h.deps.Products.List(c.Request.Context(), listFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// getProduct returns the product with a few related products from the
// same category.
func (h *handlers) getProduct(c *gin.Context) {
	id, ok := int64Param(c, "id", "product")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p, err := h.deps.Products.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	related, err := h.deps.Products.Related(ctx, *p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p, "related": related})
}

func (h *handlers) specialOffer(c *gin.Context) {
	p, err := h.deps.Products.SpecialOffer(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

func (h *handlers) listCategories(c *gin.Context) {
	categories, err := h.deps.Categories.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

func (h *handlers) categoryProducts(c *gin.Context) {
	category, page, err := h.deps.Categories.Products(c.Request.Context(), c.Param("slug"), intQuery(c, "page"), intQuery(c, "per_page"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "products": page})
}
