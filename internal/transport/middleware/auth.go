package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/eventpro/booking-api/config"
	"github.com/eventpro/booking-api/internal/entity"
	"github.com/eventpro/booking-api/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

const userContextKey = "current_user"

var (
	errMissingAuthorization = errors.New("missing authorization header")
	errBadAuthorization     = errors.New("malformed authorization header")
)

// Claims carries the identity fields the provider signs into the token.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Auth validates bearer tokens and resolves the caller's stored user record.
type Auth struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	users    service.UserService
}

func NewAuth(cfg *config.JWTConfig, users service.UserService) *Auth {
	return &Auth{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		parser:   jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
		users:    users,
	}
}

// Authenticate verifies the token and ensures a users row exists for the
// subject. The resolved record, role included, comes from the store.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := a.identityFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := a.users.ResolveIdentity(c.Request.Context(), identity)
		if err != nil {
			logrus.Warnf("Failed to resolve identity %s: %v", identity.ID, err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

// RequireAdmin re-reads the role from the store at the moment of the
// request. Token claims and anything cached client-side are advisory only.
func (a *Auth) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if _, err := a.users.RequireAdmin(c.Request.Context(), user.ID); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}

func (a *Auth) identityFromHeader(header string) (*service.Identity, error) {
	if header == "" {
		return nil, errMissingAuthorization
	}

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return nil, errBadAuthorization
	}

	claims := &Claims{}
	parsed, err := a.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, errBadAuthorization
	}

	if a.issuer != "" && claims.Issuer != a.issuer {
		return nil, errBadAuthorization
	}
	if a.audience != "" && !containsAudience(claims.Audience, a.audience) {
		return nil, errBadAuthorization
	}
	if claims.Subject == "" {
		return nil, errBadAuthorization
	}

	return &service.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.Name,
	}, nil
}

func containsAudience(audiences jwt.ClaimStrings, want string) bool {
	for _, aud := range audiences {
		if aud == want {
			return true
		}
	}
	return false
}

// CurrentUser returns the authenticated user set by Authenticate, or nil.
func CurrentUser(c *gin.Context) *entity.User {
	val, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, ok := val.(*entity.User)
	if !ok {
		return nil
	}
	return user
}
