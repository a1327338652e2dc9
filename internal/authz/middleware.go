package authz

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Middleware validates the Bearer token and stores the tenant and user
// identity on the request context. Every authenticated route goes through
// it; handlers read the tenant via TenantIDFromRequest.
func Middleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
				return
			}
			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}
			tenantID, ok := claims["tid"].(string)
			if !ok || tenantID == "" {
				http.Error(w, "Missing token claim", http.StatusUnauthorized)
				return
			}
			userID, _ := claims["sub"].(string)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), tenantID, userID)))
		})
	}
}
