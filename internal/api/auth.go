package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"regexp"   // Regular expressions
	"strings"  // String manipulation
	"time"     // Token lifetime

	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/middleware" // Tenant context helpers
	"clube_beneficios/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Money
	"github.com/sirupsen/logrus"    // Logging
	"golang.org/x/crypto/bcrypt"    // Password hashing
	"gorm.io/gorm"                  // GORM ORM library
)

// Password length limits
const (
	MinPasswordLen = 8
	MaxPasswordLen = 64
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TokenIssuer signs tokens for authenticated subjects
type TokenIssuer struct {
	Secret string        // JWT secret key
	TTL    time.Duration // Token lifetime
}

func (t TokenIssuer) issue(id utils.Identity) (string, error) {
	return utils.GenerateJWT(id, t.Secret, t.TTL)
}

// RegisterRequest is the body of a user sign up
type RegisterRequest struct {
	Name       string `json:"name" binding:"required"`     // Display name
	Email      string `json:"email" binding:"required"`    // Login email
	Password   string `json:"password" binding:"required"` // Plain password
	Phone      string `json:"phone"`                       // Optional phone for WhatsApp
	ReferrerID *uint  `json:"referrer_id"`                 // User who invited this one
	Merchant   bool   `json:"merchant"`                    // Sign up as a merchant
}

// LoginRequest is the body of every login endpoint
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`    // Login email
	Password string `json:"password" binding:"required"` // Plain password
}

// AuthResponse carries the issued token
type AuthResponse struct {
	Token string `json:"token"` // JWT token
	Role  string `json:"role"`  // Role inside the token
}

// isValidEmail checks the address has a plausible shape
func isValidEmail(email string) bool {
	return len(email) <= 191 && emailPattern.MatchString(email)
}

// isValidPassword checks if the password length is between 8 and 64 characters
func isValidPassword(password string) bool {
	return len(password) >= MinPasswordLen && len(password) <= MaxPasswordLen
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// checkPassword compares a stored hash with the supplied password
func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SuperAdminLoginHandler authenticates a platform operator against the master database
func SuperAdminLoginHandler(master *gorm.DB, tokens TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var admin domain.SuperAdmin // Fetch admin from database
		if err := master.WithContext(c.Request.Context()).Where("email = ?", normalizeEmail(req.Email)).First(&admin).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if !checkPassword(admin.Password, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := tokens.issue(utils.Identity{SubjectID: admin.ID, Role: domain.RoleSuperAdmin})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token, Role: domain.RoleSuperAdmin})
	}
}

// ClubAdminLoginHandler authenticates a club administrator; the token is bound to the admin's club
func ClubAdminLoginHandler(master *gorm.DB, tokens TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var admin domain.ClubAdmin // Fetch admin together with its club
		if err := master.WithContext(c.Request.Context()).Preload("Club").
			Where("email = ?", normalizeEmail(req.Email)).First(&admin).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		if !checkPassword(admin.Password, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Admins of a deactivated club cannot sign in
		if admin.Club == nil || !admin.Club.Active {
			c.JSON(http.StatusForbidden, gin.H{"error": "Club is inactive"})
			return
		}
		token, err := tokens.issue(utils.Identity{
			SubjectID: admin.ID,
			Role:      domain.RoleClubAdmin,
			ClubID:    admin.ClubID,
			ClubRole:  admin.Role,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token, Role: domain.RoleClubAdmin})
	}
}

// RegisterHandler creates a user in the club named by the request headers
func RegisterHandler(tokens TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		club, _ := middleware.ClubFrom(c)
		tdb := middleware.TenantDB(c)
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		email := normalizeEmail(req.Email)
		// Validate email and password
		if !isValidEmail(email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-64 characters"})
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Name is required"})
			return
		}
		// The referrer must already be a member of the same club
		if req.ReferrerID != nil {
			var count int64
			if err := tdb.Model(&domain.User{}).Where("id = ?", *req.ReferrerID).Count(&count).Error; err != nil || count == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Referrer not found"})
				return
			}
		}
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		role := domain.RoleUser
		if req.Merchant {
			role = domain.RoleMerchant
		}
		user := domain.User{
			Name:            strings.TrimSpace(req.Name),
			Email:           email,
			Phone:           strings.TrimSpace(req.Phone),
			Password:        string(hash),
			Role:            role,
			ReferrerID:      req.ReferrerID,
			CashbackBalance: decimal.Zero,
		}
		if err := tdb.Where("email = ?", email).First(&domain.User{}).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
			return
		}
		if err := tdb.Create(&user).Error; err != nil {
			// Unique index catches a concurrent sign up with the same email
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		logrus.WithFields(logrus.Fields{"club": club.Slug, "user_id": user.ID, "role": role}).Info("User registered")
		token, err := tokens.issue(utils.Identity{SubjectID: user.ID, Role: role, ClubID: club.ID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
	}
}

// LoginHandler authenticates a club user and returns a JWT token bound to the club
func LoginHandler(tokens TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		club, _ := middleware.ClubFrom(c)
		tdb := middleware.TenantDB(c)
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var user domain.User // Fetch user from database
		if err := tdb.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if !checkPassword(user.Password, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := tokens.issue(utils.Identity{SubjectID: user.ID, Role: user.Role, ClubID: club.ID})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token, Role: user.Role})
	}
}
