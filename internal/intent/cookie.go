package intent

import (
	"net/http"

	"membership_backend/internal/config"

	"github.com/gin-gonic/gin"
)

// Cookie names. The intent cookie carries the raw intent for the local
// credentials flow; the state cookie carries a correlation key pointing into
// the Store for the OAuth flow.
const (
	IntentCookieName = "auth_intent"
	StateCookieName  = "oauth_state_id"
	LocaleCookieName = "auth_locale"
)

// Carrier is the cookie surface for a single request. Readers return ok=false
// when the cookie is absent; cookies can be blocked, cleared by the browser,
// or lost across cross-site redirects, so every consumer treats "absent" as a
// normal case.
type Carrier interface {
	Intent() (string, bool)
	CorrelationKey() (string, bool)
	Locale() (string, bool)
	SetIntent(value string)
	SetCorrelationKey(key string)
	SetLocale(locale string)
	ClearIntent()
	ClearCorrelationKey()
}

type ginCarrier struct {
	c   *gin.Context
	cfg *config.Config
}

// NewGinCarrier wraps a Gin request context as a Carrier.
func NewGinCarrier(c *gin.Context, cfg *config.Config) Carrier {
	return &ginCarrier{c: c, cfg: cfg}
}

func (g *ginCarrier) Intent() (string, bool)         { return g.read(IntentCookieName) }
func (g *ginCarrier) CorrelationKey() (string, bool) { return g.read(StateCookieName) }
func (g *ginCarrier) Locale() (string, bool)         { return g.read(LocaleCookieName) }

func (g *ginCarrier) SetIntent(value string) {
	g.write(IntentCookieName, value, g.cfg.IntentCookieMaxAge)
}

// SetCorrelationKey uses the longer TTL: an OAuth round trip includes consent
// screens and provider redirects and routinely outlives the local flow.
func (g *ginCarrier) SetCorrelationKey(key string) {
	g.write(StateCookieName, key, g.cfg.StateCookieMaxAge)
}

func (g *ginCarrier) SetLocale(locale string) {
	g.write(LocaleCookieName, locale, g.cfg.StateCookieMaxAge)
}

func (g *ginCarrier) ClearIntent()         { g.write(IntentCookieName, "", -1) }
func (g *ginCarrier) ClearCorrelationKey() { g.write(StateCookieName, "", -1) }

func (g *ginCarrier) read(name string) (string, bool) {
	cookie, err := g.c.Request.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (g *ginCarrier) write(name, value string, maxAge int) {
	http.SetCookie(g.c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   g.cfg.CookieDomain,
		MaxAge:   maxAge,
		Secure:   g.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: parseSameSite(g.cfg.CookieSameSite),
	})
}

func parseSameSite(s string) http.SameSite {
	switch s {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
