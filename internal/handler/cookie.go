package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kc-reserve/hut-api/pkg/config"
)

// RefreshCookie describes the cookie that carries the raw refresh secret.
type RefreshCookie struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	TTL      time.Duration
}

// NewRefreshCookie derives cookie attributes from configuration.
func NewRefreshCookie(cfg *config.Config) RefreshCookie {
	name := cfg.Cookie.Name
	if name == "" {
		name = "refreshToken"
	}
	return RefreshCookie{
		Name:     name,
		Path:     cfg.CookiePath(),
		Domain:   cfg.Cookie.Domain,
		Secure:   cfg.Cookie.Secure,
		SameSite: cfg.Cookie.SameSiteMode(),
		TTL:      cfg.JWT.RefreshExpiration,
	}
}

func (rc RefreshCookie) set(c *gin.Context, raw string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     rc.Name,
		Value:    raw,
		Path:     rc.Path,
		Domain:   rc.Domain,
		MaxAge:   int(rc.TTL / time.Second),
		Expires:  time.Now().Add(rc.TTL),
		Secure:   rc.Secure,
		HttpOnly: true,
		SameSite: rc.SameSite,
	})
}

func (rc RefreshCookie) clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     rc.Name,
		Value:    "",
		Path:     rc.Path,
		Domain:   rc.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   rc.Secure,
		HttpOnly: true,
		SameSite: rc.SameSite,
	})
}

func (rc RefreshCookie) read(c *gin.Context) string {
	raw, err := c.Cookie(rc.Name)
	if err != nil {
		return ""
	}
	return raw
}
