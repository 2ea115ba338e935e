package bedsvc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail signature or expiry checks.
var ErrInvalidToken = errors.New("bedsvc: invalid token")

const nurseKey = "nurse"

// Claims identify the nurse a token was issued to.
type Claims struct {
	Nurse string `json:"nurse"`
	jwt.RegisteredClaims
}

// Tokens issues and validates HS256 bearer tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	clock  func() time.Time
}

// NewTokens creates a token service.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  time.Now,
	}
}

// Issue signs a token for nurse.
func (t *Tokens) Issue(nurse string) (string, error) {
	now := t.clock()
	claims := Claims{
		Nurse: nurse,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   nurse,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Validate parses and verifies raw.
func (t *Tokens) Validate(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.clock))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// requireNurse rejects requests without a valid bearer token.
func requireNurse(tokens *Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := tokens.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(nurseKey, claims.Nurse)
		c.Next()
	}
}
