package api

import (
	"errors"   // Error matching
	"net/http" // HTTP status codes
	"regexp"   // Address validation
	"strings"  // String manipulation

	"clube_beneficios/internal/domain"     // Importing domain models
	"clube_beneficios/internal/middleware" // Tenant context helpers
	"clube_beneficios/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Rates and amounts
	"gorm.io/gorm"                  // GORM ORM library
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// StakeContractRequest creates or updates a stake contract; omitted fields keep their value on update
type StakeContractRequest struct {
	Name       *string          `json:"name"`
	Address    *string          `json:"address"`
	IncomeType *string          `json:"income_type"` // fixed or variable
	CDIPercent *decimal.Decimal `json:"cdi_percent"` // Variable income, % of CDI
	AnnualRate *decimal.Decimal `json:"annual_rate"` // Fixed income, % a year
	MinDeposit *decimal.Decimal `json:"min_deposit"`
	LockDays   *int             `json:"lock_days"`
	Active     *bool            `json:"active"`
}

func (r StakeContractRequest) apply(s *domain.StakeContract) error {
	if r.Name != nil {
		s.Name = strings.TrimSpace(*r.Name)
	}
	if r.Address != nil {
		s.Address = strings.ToLower(strings.TrimSpace(*r.Address))
	}
	if r.IncomeType != nil {
		s.IncomeType = *r.IncomeType
	}
	if r.CDIPercent != nil {
		s.CDIPercent = *r.CDIPercent
	}
	if r.AnnualRate != nil {
		s.AnnualRate = *r.AnnualRate
	}
	if r.MinDeposit != nil {
		s.MinDeposit = *r.MinDeposit
	}
	if r.LockDays != nil {
		s.LockDays = *r.LockDays
	}
	if r.Active != nil {
		s.Active = *r.Active
	}
	switch {
	case s.Name == "":
		return errors.New("name is required")
	case s.Address != "" && !addressPattern.MatchString(s.Address):
		return errors.New("address must be a 0x prefixed 20 byte hex string")
	case s.IncomeType != domain.IncomeFixed && s.IncomeType != domain.IncomeVariable:
		return errors.New("income_type must be fixed or variable")
	case s.IncomeType == domain.IncomeFixed && !s.AnnualRate.IsPositive():
		return errors.New("fixed income contracts need a positive annual_rate")
	case s.IncomeType == domain.IncomeVariable && !s.CDIPercent.IsPositive():
		return errors.New("variable income contracts need a positive cdi_percent")
	case s.MinDeposit.IsNegative() || s.LockDays < 0:
		return errors.New("min_deposit and lock_days cannot be negative")
	}
	return nil
}

// CreateStakeContractHandler registers an investment product
func CreateStakeContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		var req StakeContractRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		sc := domain.StakeContract{Active: true, CDIPercent: decimal.Zero, AnnualRate: decimal.Zero, MinDeposit: decimal.Zero}
		if err := req.apply(&sc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tdb.Create(&sc).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create stake contract"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"stake_contract": sc})
	}
}

// UpdateStakeContractHandler edits an investment product
func UpdateStakeContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		scID, ok := paramID(c, "id")
		if !ok {
			return
		}
		var sc domain.StakeContract
		if err := tdb.First(&sc, scID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Stake contract not found"})
			return
		}
		var req StakeContractRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := req.apply(&sc); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := tdb.Save(&sc).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update stake contract"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stake_contract": sc})
	}
}

// ListStakeContractsHandler lists investment products; users only see active ones
func ListStakeContractsHandler(activeOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := middleware.TenantDB(c).Model(&domain.StakeContract{})
		if activeOnly {
			q = q.Where("active = ?", true)
		}
		if t := c.Query("income_type"); t != "" {
			q = q.Where("income_type = ?", t)
		}
		var items []domain.StakeContract
		if err := q.Order("id").Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stake contracts"})
			return
		}
		if items == nil {
			items = []domain.StakeContract{}
		}
		c.JSON(http.StatusOK, gin.H{"stake_contracts": items})
	}
}

// ExchangeContractRequest registers an exchange contract whose orders are mirrored
type ExchangeContractRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// CreateExchangeContractHandler registers an exchange contract
func CreateExchangeContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tdb := middleware.TenantDB(c)
		var req ExchangeContractRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		address := strings.ToLower(strings.TrimSpace(req.Address))
		if !addressPattern.MatchString(address) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "address must be a 0x prefixed 20 byte hex string"})
			return
		}
		ec := domain.ExchangeContract{Name: strings.TrimSpace(req.Name), Address: address, Active: true}
		if err := tdb.Where("address = ?", address).First(&domain.ExchangeContract{}).Error; err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "Contract already registered"})
			return
		}
		if err := tdb.Create(&ec).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create exchange contract"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"exchange_contract": ec})
	}
}

// ExchangeOrderRequest records an order the user placed on-chain so it can be tracked
type ExchangeOrderRequest struct {
	ContractID uint            `json:"contract_id" binding:"required"`
	OnchainID  uint64          `json:"onchain_id"`
	Side       string          `json:"side" binding:"required"` // buy or sell
	Amount     decimal.Decimal `json:"amount"`
	Price      decimal.Decimal `json:"price"`
}

// CreateExchangeOrderHandler starts tracking an on-chain order of the user
func CreateExchangeOrderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := caller(c)
		tdb := middleware.TenantDB(c)
		var req ExchangeOrderRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if req.Side != "buy" && req.Side != "sell" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "side must be buy or sell"})
			return
		}
		if !req.Amount.IsPositive() || !req.Price.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "amount and price must be greater than zero"})
			return
		}
		var ec domain.ExchangeContract
		err := tdb.Where("id = ? AND active = ?", req.ContractID, true).First(&ec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Exchange contract not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch exchange contract"})
			return
		}
		var dup int64
		if err := tdb.Model(&domain.ExchangeOrder{}).Where("contract_id = ? AND onchain_id = ?", ec.ID, req.OnchainID).Count(&dup).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record order"})
			return
		}
		if dup > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Order already tracked"})
			return
		}
		order := domain.ExchangeOrder{
			ContractID: ec.ID,
			OnchainID:  req.OnchainID,
			UserID:     id.SubjectID,
			Side:       req.Side,
			Amount:     req.Amount,
			Price:      req.Price,
			Status:     domain.OrderOpen,
		}
		if err := tdb.Create(&order).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record order"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"order": order})
	}
}

// ListMyExchangeOrdersHandler lists the user's exchange orders, optionally by status
func ListMyExchangeOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := caller(c)
		q := middleware.TenantDB(c).Model(&domain.ExchangeOrder{}).Where("user_id = ?", id.SubjectID)
		if s := c.Query("status"); s != "" {
			q = q.Where("status = ?", s)
		}
		q = q.Session(&gorm.Session{})
		page, pageSize := utils.Page(c)
		var total int64
		if err := q.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count orders"})
			return
		}
		var orders []domain.ExchangeOrder
		if err := q.Order("id desc").Offset(utils.Offset(page, pageSize)).Limit(pageSize).Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		c.JSON(http.StatusOK, newPaged(orders, page, pageSize, total))
	}
}
