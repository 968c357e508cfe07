package httpserver

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"storefront/internal/domain"
	"storefront/internal/session"
)

const (
	visitorCtxKey  = "visitor"
	customerCtxKey = "customer"
	tokenCtxKey    = "access_token"
)

type tokenLookup interface {
	LookupByToken(ctx context.Context, token string) (*domain.Customer, error)
}

// visitorMiddleware resolves who is calling. A bearer token identifies a
// customer; every caller also gets a session cookie, issued when missing.
func visitorMiddleware(customers tokenLookup, cookie CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cookie.Name)
		if err != nil || !session.ValidID(sid) {
			sid, err = session.NewID()
			if err != nil {
				respondError(c, err)
				return
			}
		}
		setSessionCookie(c, cookie, sid, int(cookie.TTL.Seconds()))

		v := domain.AnonymousVisitor(sid)
		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			cust, err := customers.LookupByToken(c.Request.Context(), token)
			if err != nil {
				respondError(c, err)
				return
			}
			v = domain.CustomerVisitor(cust.ID)
			v.SessionID = sid
			c.Set(customerCtxKey, cust)
			c.Set(tokenCtxKey, token)
		}
		c.Set(visitorCtxKey, v)
		c.Next()
	}
}

func requireCustomer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !visitorFrom(c).Authenticated() {
			respondError(c, domain.Unauthorized("http.auth", "Unauthenticated."))
			return
		}
		c.Next()
	}
}

func visitorFrom(c *gin.Context) domain.Visitor {
	if v, ok := c.Get(visitorCtxKey); ok {
		return v.(domain.Visitor)
	}
	return domain.Visitor{}
}

func customerFrom(c *gin.Context) *domain.Customer {
	if v, ok := c.Get(customerCtxKey); ok {
		return v.(*domain.Customer)
	}
	return nil
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func setSessionCookie(c *gin.Context, cookie CookieConfig, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, value, maxAge, "/", "", cookie.Secure, true)
}
