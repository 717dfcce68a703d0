package utils

import (
	"errors" // Error values
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// Identity is who a token speaks for
type Identity struct {
	SubjectID uint   `json:"sub_id"`              // Super admin, club admin or user ID
	Role      string `json:"role"`                // super_admin, club_admin, user or merchant
	ClubID    uint   `json:"club_id,omitempty"`   // Tenant the subject belongs to (zero for super admins)
	ClubRole  string `json:"club_role,omitempty"` // owner, manager or viewer for club admins
}

// JWT Claims
type Claims struct {
	Identity             // Custom claims
	jwt.RegisteredClaims // Standard JWT claims
}

// GenerateJWT creates a JWT token for the given identity
func GenerateJWT(id Identity, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	// Set token claims
	claims := Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)), // Token expiry
			IssuedAt:  jwt.NewNumericDate(now),          // Issued at current time
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// ParseJWT parses and validates a JWT token string
func ParseJWT(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.SubjectID == 0 || claims.Role == "" {
			return nil, errors.New("token carries no identity")
		}
		return claims, nil // Return claims if valid
	}
	// Return error if token is invalid
	return nil, jwt.ErrSignatureInvalid
}
