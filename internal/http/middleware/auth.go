package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"staybackend/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	actorKey     = "actor"
	roleFreshKey = "actor_role_fresh"
)

// TokenParser turns a bearer token into the caller identity.
type TokenParser interface {
	ParseToken(raw string) (domain.Actor, error)
}

// RoleResolver returns a user's role as currently stored.
type RoleResolver interface {
	CurrentRole(ctx context.Context, userID int64) (string, error)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":      message,
		"code":       code,
		"request_id": GetRequestID(c),
	})
}

func bearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// ActorFrom returns the caller stored by Authenticate or CronAuth.
func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok
}

// Actor is ActorFrom without the flag; anonymous callers get the zero Actor.
func Actor(c *gin.Context) domain.Actor {
	a, _ := ActorFrom(c)
	return a
}

// Authenticate resolves the bearer token when one is sent. Requests without a
// token continue anonymously; a token that fails to parse is rejected.
func Authenticate(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			c.Next()
			return
		}
		actor, err := parser.ParseToken(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireAuth stops anonymous callers.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !Actor(c).Authenticated() {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// FreshRole swaps the role claimed by the token for the stored one on
// state-changing requests, or on every request when always is set. System and
// anonymous callers pass through untouched.
func FreshRole(roles RoleResolver, always bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || actor.System || actor.UserID == 0 || c.GetBool(roleFreshKey) || (!always && safeMethod(c.Request.Method)) {
			c.Next()
			return
		}
		if !refreshRole(c, roles, &actor) {
			return
		}
		c.Next()
	}
}

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

func refreshRole(c *gin.Context, roles RoleResolver, actor *domain.Actor) bool {
	role, err := roles.CurrentRole(c.Request.Context(), actor.UserID)
	if err != nil {
		if domain.IsAuthentication(err) {
			abort(c, http.StatusUnauthorized, "unauthorized", err.Error())
		} else {
			abort(c, http.StatusInternalServerError, "internal_error", "could not verify account role")
		}
		return false
	}
	actor.Role = role
	c.Set(actorKey, *actor)
	c.Set(roleFreshKey, true)
	return true
}

// RequireRoles only lets through callers whose role is in allowedRoles.
//
//	admin.Use(RequireRoles(domain.RoleAdmin))
func RequireRoles(allowedRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}

	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok || !actor.Authenticated() {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(actor.Role))]; !ok {
			abort(c, http.StatusForbidden, "forbidden", "role not allowed")
			return
		}
		c.Next()
	}
}

// CronAuth guards the scheduled cleanup endpoints. The shared cron secret is
// always accepted; on POST an admin token is accepted as well, checked against
// the stored role when roles is set. An empty secret never matches.
func CronAuth(secret string, parser TokenParser, roles RoleResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if secret != "" && subtle.ConstantTimeCompare([]byte(raw), []byte(secret)) == 1 {
			c.Set(actorKey, domain.SystemActor())
			c.Next()
			return
		}
		if c.Request.Method == http.MethodPost && parser != nil {
			actor, err := parser.ParseToken(raw)
			if err == nil {
				if roles != nil && !refreshRole(c, roles, &actor) {
					return
				}
				if !actor.IsAdmin() {
					abort(c, http.StatusForbidden, "forbidden", "admin access required")
					return
				}
				c.Set(actorKey, actor)
				c.Next()
				return
			}
		}
		abort(c, http.StatusUnauthorized, "unauthorized", "invalid cron credentials")
	}
}
