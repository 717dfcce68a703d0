package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"regexp"   // Slug validation
	"strings"  // String manipulation
	"sync"     // Result collection

	"clube_beneficios/internal/domain" // Importing domain models
	"clube_beneficios/internal/tenant" // Club databases
	"clube_beneficios/internal/utils"  // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Percentages
	"github.com/sirupsen/logrus"    // Logging
	"golang.org/x/crypto/bcrypt"    // Password hashing
	"golang.org/x/sync/errgroup"    // Bounded fan-out
	"gorm.io/gorm"                  // GORM ORM library
)

const clubsCachePrefix = "admin:clubs:"

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,62}$`)

var hundred = decimal.NewFromInt(100)

// ClubRequest is the body for creating or updating a club; omitted fields keep their value on update
type ClubRequest struct {
	Name                 *string          `json:"name"`
	Slug                 string           `json:"slug"` // Only read on create
	DatabaseURL          *string          `json:"database_url"`
	PlatformFeePct       *decimal.Decimal `json:"platform_fee_pct"`
	CashbackEnabled      *bool            `json:"cashback_enabled"`
	InvestmentsEnabled   *bool            `json:"investments_enabled"`
	WhatsAppEnabled      *bool            `json:"whatsapp_enabled"`
	NotificationsEnabled *bool            `json:"notifications_enabled"`
}

func (r ClubRequest) apply(club *domain.Club) error {
	if r.Name != nil {
		club.Name = strings.TrimSpace(*r.Name)
	}
	if r.DatabaseURL != nil {
		club.DatabaseURL = strings.TrimSpace(*r.DatabaseURL)
	}
	if r.PlatformFeePct != nil {
		if r.PlatformFeePct.IsNegative() || r.PlatformFeePct.GreaterThan(hundred) {
			return errors.New("platform fee must be between 0 and 100")
		}
		club.PlatformFeePct = *r.PlatformFeePct
	}
	toggles := map[string]*bool{
		domain.ModuleCashback:      r.CashbackEnabled,
		domain.ModuleInvestments:   r.InvestmentsEnabled,
		domain.ModuleWhatsApp:      r.WhatsAppEnabled,
		domain.ModuleNotifications: r.NotificationsEnabled,
	}
	for module, v := range toggles {
		if v != nil {
			club.SetModule(module, *v)
		}
	}
	if club.Name == "" {
		return errors.New("club name is required")
	}
	return nil
}

// ListClubsHandler returns every club, active or not
func ListClubsHandler(master *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		page, pageSize := utils.Page(c)
		cacheKey := pageKey(clubsCachePrefix, page, pageSize)
		var cached Paged[domain.Club]
		if found, err := utils.GetCache(ctx, rdb, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		var total int64 // Total club count
		if err := master.WithContext(ctx).Model(&domain.Club{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count clubs"})
			return
		}
		var clubs []domain.Club
		if err := master.WithContext(ctx).Order("id").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&clubs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch clubs"})
			return
		}
		resp := newPaged(clubs, page, pageSize, total)
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, clubListTTL)
		c.JSON(http.StatusOK, resp)
	}
}

// CreateClubHandler registers a club and provisions its database
func CreateClubHandler(resolver *tenant.Resolver, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ClubRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		slug := strings.ToLower(strings.TrimSpace(req.Slug))
		if !slugPattern.MatchString(slug) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Slug must be 2-63 lowercase letters, digits or dashes"})
			return
		}
		club := domain.Club{Slug: slug, Active: true, PlatformFeePct: decimal.Zero}
		if err := req.apply(&club); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		ctx := c.Request.Context()
		master := resolver.Master().WithContext(ctx)
		var count int64
		if err := master.Model(&domain.Club{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create club"})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug already taken"})
			return
		}
		if err := master.Create(&club).Error; err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug already taken"})
			return
		}
		log := logrus.WithFields(logrus.Fields{"club_id": club.ID, "slug": club.Slug})
		if err := resolver.Provision(ctx, &club); err != nil {
			// Without a database the club is unusable; undo the registration
			resolver.Evict(club.ID)
			if derr := master.Delete(&domain.Club{}, club.ID).Error; derr != nil {
				log.WithField("error", derr.Error()).Error("Failed to roll back club")
			}
			log.WithField("error", err.Error()).Error("Club provisioning failed")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to provision club database"})
			return
		}
		log.Info("Club created")
		invalidate(ctx, rdb, clubsCachePrefix)
		c.JSON(http.StatusCreated, gin.H{"club": club})
	}
}

// loadClub fetches a club by the :id path parameter regardless of its state
func loadClub(c *gin.Context, master *gorm.DB) (*domain.Club, bool) {
	clubID, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	var club domain.Club
	err := master.WithContext(c.Request.Context()).First(&club, clubID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Club not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch club"})
		return nil, false
	}
	return &club, true
}

// GetClubHandler returns one club with its admins
func GetClubHandler(master *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		club, ok := loadClub(c, master)
		if !ok {
			return
		}
		var admins []domain.ClubAdmin
		if err := master.WithContext(c.Request.Context()).Where("club_id = ?", club.ID).Order("id").Find(&admins).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch admins"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"club": club, "admins": admins})
	}
}

// UpdateClubHandler edits name, fee, database URL and module toggles
func UpdateClubHandler(resolver *tenant.Resolver, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		master := resolver.Master()
		club, ok := loadClub(c, master)
		if !ok {
			return
		}
		var req ClubRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		oldURL := club.DatabaseURL
		if err := req.apply(club); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := master.WithContext(c.Request.Context()).Save(club).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update club"})
			return
		}
		if club.DatabaseURL != oldURL {
			resolver.Evict(club.ID) // Next request reconnects to the new database
		}
		invalidate(c.Request.Context(), rdb, clubsCachePrefix)
		c.JSON(http.StatusOK, gin.H{"club": club})
	}
}

// ModuleRequest toggles one module
type ModuleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetModuleHandler switches one module of a club on or off
func SetModuleHandler(master *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		club, ok := loadClub(c, master)
		if !ok {
			return
		}
		var req ModuleRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if !club.SetModule(c.Param("module"), *req.Enabled) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown module " + c.Param("module")})
			return
		}
		if err := master.WithContext(c.Request.Context()).Save(club).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update club"})
			return
		}
		logrus.WithFields(logrus.Fields{"club_id": club.ID, "module": c.Param("module"), "enabled": *req.Enabled}).Info("Club module toggled")
		invalidate(c.Request.Context(), rdb, clubsCachePrefix)
		c.JSON(http.StatusOK, gin.H{"club": club})
	}
}

// DeactivateClubHandler turns a club off; its data is kept and its connection closed
func DeactivateClubHandler(resolver *tenant.Resolver, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		master := resolver.Master()
		club, ok := loadClub(c, master)
		if !ok {
			return
		}
		if err := master.WithContext(c.Request.Context()).Model(club).Update("active", false).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate club"})
			return
		}
		resolver.Evict(club.ID)
		logrus.WithField("club_id", club.ID).Warn("Club deactivated")
		invalidate(c.Request.Context(), rdb, clubsCachePrefix)
		c.JSON(http.StatusOK, gin.H{"message": "Club deactivated"})
	}
}

// ClubAdminRequest creates an administrator for a club
type ClubAdminRequest struct {
	Name     string `json:"name" binding:"required"`     // Display name
	Email    string `json:"email" binding:"required"`    // Login email
	Password string `json:"password" binding:"required"` // Plain password
	Role     string `json:"role"`                        // owner, manager or viewer
}

// CreateClubAdminHandler adds an administrator to a club
func CreateClubAdminHandler(master *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		club, ok := loadClub(c, master)
		if !ok {
			return
		}
		var req ClubAdminRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		email := normalizeEmail(req.Email)
		if !isValidEmail(email) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email address"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-64 characters"})
			return
		}
		if req.Role == "" {
			req.Role = domain.ClubRoleManager
		}
		if !domain.ValidClubRole(req.Role) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be owner, manager or viewer"})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		admin := domain.ClubAdmin{ClubID: club.ID, Email: email, Password: string(hash), Name: strings.TrimSpace(req.Name), Role: req.Role}
		if err := master.WithContext(c.Request.Context()).Create(&admin).Error; err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		logrus.WithFields(logrus.Fields{"club_id": club.ID, "admin_id": admin.ID, "role": admin.Role}).Info("Club admin created")
		c.JSON(http.StatusCreated, gin.H{"admin": admin})
	}
}

// ClubUsers is the user count of one club
type ClubUsers struct {
	ClubID uint   `json:"club_id"`
	Slug   string `json:"slug"`
	Users  int64  `json:"users"`
	Error  string `json:"error,omitempty"`
}

// UsersCountHandler counts users across every active club, a few clubs at a time
func UsersCountHandler(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		clubs, err := resolver.ActiveClubs(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list clubs"})
			return
		}
		results := make([]ClubUsers, len(clubs))
		var mu sync.Mutex
		var total int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(4)
		for i, club := range clubs {
			g.Go(func() error {
				results[i] = ClubUsers{ClubID: club.ID, Slug: club.Slug}
				_, tdb, err := resolver.ByID(gctx, club.ID)
				if err == nil {
					err = tdb.Model(&domain.User{}).Count(&results[i].Users).Error
				}
				if err != nil {
					// One unreachable club must not hide the others
					results[i].Error = "unavailable"
					logrus.WithFields(logrus.Fields{"club_id": club.ID, "error": err.Error()}).Warn("Failed to count club users")
					return nil
				}
				mu.Lock()
				total += results[i].Users
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		c.JSON(http.StatusOK, gin.H{"total": total, "clubs": results})
	}
}
