package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	cartsvc "storefront/internal/service/cart"
	customersvc "storefront/internal/service/customer"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *handlers) signup(c *gin.Context) {
	var in customersvc.SignupInput
	if !bindJSON(c, "customer.signup", &in) {
		return
	}
	cust, err := h.deps.Customers.Signup(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"customer": cust})
}

// login authenticates the customer and folds the session cart into their
// persistent cart. A failed merge does not fail the login.
func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, "customer.login", &req) {
		return
	}
	ctx := c.Request.Context()
	cust, tokens, err := h.deps.Customers.Login(ctx, req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	var merged cartsvc.MergeResult
	if sid := visitorFrom(c).SessionID; sid != "" {
		merged, err = h.deps.Carts.MergeSession(ctx, sid, cust.ID)
		if err != nil {
			h.logger.Warn("merge session cart on login", zap.String("customer_id", cust.ID), zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"customer":      cust,
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_in":    tokens.ExpiresIn,
		"token_type":    "Bearer",
		"cart_merge":    merged,
	})
}

func (h *handlers) refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, "customer.refresh", &req) {
		return
	}
	tokens, err := h.deps.Customers.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

// logout revokes the access token and drops the whole session.
func (h *handlers) logout(c *gin.Context) {
	ctx := c.Request.Context()
	if token := c.GetString(tokenCtxKey); token != "" {
		if err := h.deps.Customers.Logout(ctx, token); err != nil {
			respondError(c, err)
			return
		}
	}
	if sid := visitorFrom(c).SessionID; sid != "" {
		if err := h.deps.Sessions.Destroy(ctx, sid); err != nil {
			h.logger.Warn("destroy session on logout", zap.Error(err))
		}
	}
	setSessionCookie(c, h.deps.Cookie, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"customer": customerFrom(c)})
}
