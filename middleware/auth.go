package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"canteen-orders-api/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const studentKey = "student"

type Claims struct {
	Name string          `json:"name,omitempty"`
	Role models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Auth verifies HS256 identity tokens
type Auth struct {
	secret []byte
	now    func() time.Time
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret), now: time.Now}
}

// GenerateToken signs a token for student valid for ttl
func (a *Auth) GenerateToken(student models.Student, ttl time.Duration) (string, error) {
	if student.ID == "" {
		return "", errors.New("token subject is required")
	}
	if !student.Role.Valid() {
		return "", errors.New("unknown role " + string(student.Role))
	}
	now := a.now()
	claims := Claims{
		Name: student.Name,
		Role: student.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   student.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Parse validates tokenStr and returns the caller it identifies
func (a *Auth) Parse(tokenStr string) (models.Student, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return models.Student{}, err
	}
	if !token.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return models.Student{}, errors.New("token is missing subject or role")
	}
	return models.Student{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}

// AuthRequired validates the JWT and injects the caller into context
func (a *Auth) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required (Bearer <token>)"})
			c.Abort()
			return
		}
		student, err := a.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		c.Set(studentKey, student)
		c.Next()
	}
}

// RoleRequired enforces that caller has one of the allowed roles
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := CurrentStudent(c)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found in context"})
			c.Abort()
			return
		}
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Access denied. Required role(s): " + rolesString(roles),
		})
		c.Abort()
	}
}

func rolesString(roles []models.UserRole) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

// CurrentStudent returns the authenticated caller
func CurrentStudent(c *gin.Context) (models.Student, bool) {
	val, exists := c.Get(studentKey)
	if !exists {
		return models.Student{}, false
	}
	s, ok := val.(models.Student)
	return s, ok
}
