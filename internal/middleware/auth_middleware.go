package middleware

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/models"
)

type AdminClaims struct {
	AdminID  uuid.UUID `json:"admin_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	jwt.RegisteredClaims
}

func jwtSecret() []byte {
	return []byte(os.Getenv("JWT_SECRET"))
}

func GenerateAdminToken(adminID uuid.UUID, username, role string) (string, error) {
	claims := AdminClaims{
		AdminID:  adminID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret())
}

// JWTAuthMiddleware guards staff routes. minRole is the lowest role
// allowed in; roles order scanner < admin < superadmin.
func JWTAuthMiddleware(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Missing authorization token")
			c.Abort()
			return
		}

		claims := &AdminClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return jwtSecret(), nil
			})
		if err != nil || !token.Valid {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			c.Abort()
			return
		}

		if !roleAtLeast(claims.Role, minRole) {
			helpers.RespondWithError(c, http.StatusForbidden, "Insufficient permissions")
			c.Abort()
			return
		}

		c.Set("admin_id", claims.AdminID)
		c.Set("admin_username", claims.Username)
		c.Set("admin_role", claims.Role)
		c.Next()
	}
}

var roleRank = map[string]int{
	models.RoleScanner:    1,
	models.RoleAdmin:      2,
	models.RoleSuperAdmin: 3,
}

func roleAtLeast(role, minRole string) bool {
	return roleRank[role] >= roleRank[minRole]
}

func GetAdminID(c *gin.Context) uuid.UUID {
	id, exists := c.Get("admin_id")
	if !exists {
		return uuid.Nil
	}
	return id.(uuid.UUID)
}

func GetAdminUsername(c *gin.Context) string {
	return c.GetString("admin_username")
}

func GetAdminRole(c *gin.Context) string {
	return c.GetString("admin_role")
}
