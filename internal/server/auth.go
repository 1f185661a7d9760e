package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sw33tLie/lifescore/pkg/errs"
)

const ctxUserKey = "lifescore_user"

// TokenService issues and checks the HS256 bearer tokens of the API.
type TokenService struct {
	Secret   []byte
	Issuer   string
	Duration time.Duration
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func (ts TokenService) Sign(userID string) (string, time.Time, error) {
	if len(ts.Secret) == 0 {
		return "", time.Time{}, errors.New("server.jwt_secret is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("user id required")
	}
	now := time.Now()
	exp := now.Add(ts.Duration)

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(ts.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return s, exp, nil
}

// Parse validates a token. Every failure is reported as ErrNotAuthenticated.
func (ts TokenService) Parse(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.Secret, nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrNotAuthenticated, "parse token", "", err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.UserID == "" {
		return nil, errs.Wrap(errs.ErrNotAuthenticated, "parse token", "invalid claims", nil)
	}
	return claims, nil
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller's user id on the context.
func AuthMiddleware(tokens TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(h[len("Bearer "):]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxUserKey, claims.UserID)
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserKey)
}
