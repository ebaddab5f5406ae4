package http

import (
	"net/http"
	"strconv"

	"yaks/internal/entity"
	"yaks/internal/repo/persistent"
	"yaks/internal/usecase"
	"yaks/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	ledger   usecase.LedgerUseCase
	features usecase.FeatureUseCase
	earning  usecase.EarningUseCase
	logger   *logger.Logger
}

func NewAdminHandler(ledger usecase.LedgerUseCase, features usecase.FeatureUseCase, earning usecase.EarningUseCase, logger *logger.Logger) *AdminHandler {
	return &AdminHandler{
		ledger:   ledger,
		features: features,
		earning:  earning,
		logger:   logger,
	}
}


// Stats godoc
// @Summary      Yak economy stats
// @Description  Aggregate wallet, transaction and feature-use counts for the admin dashboard
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  entity.LedgerStats
// @Failure      500  {object}  map[string]string
// @Router       /admin/yaks [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.ledger.Stats()
	if err != nil {
		h.logger.Error("Failed to compute yak stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

type GiveRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int    `json:"amount" binding:"required,gt=0"`
	Reason string `json:"reason" binding:"required"`
}

// Give godoc
// @Summary      Grant yaks
// @Description  Credit yaks to a user with an audit trail entry naming the granting admin
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body GiveRequest true "Grant"
// @Success      200  {object}  entity.Transaction
// @Failure      400  {object}  map[string]string
// @Router       /admin/yaks/give [post]
func (h *AdminHandler) Give(c *gin.Context) {
	adminID := c.GetString("user_id")

	var req GiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txn, err := h.ledger.Give(c.Request.Context(), adminID, req.UserID, req.Amount, req.Reason)
	if err != nil {
		respondError(c, h.logger, err, "Failed to grant yaks")
		return
	}

	c.JSON(http.StatusOK, txn)
}

// ListTransactions godoc
// @Summary      List ledger transactions
// @Description  Browse recent transactions, optionally filtered by user and type
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        user_id query string false "Filter by user"
// @Param        type query string false "Filter by transaction type"
// @Param        limit query int false "Max rows (default 100)"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /admin/yaks/transactions [get]
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	filter := persistent.TransactionFilter{
		UserID: c.Query("user_id"),
		Type:   c.Query("type"),
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = l
		}
	}

	transactions, err := h.ledger.ListTransactions(filter)
	if err != nil {
		h.logger.Error("Failed to list transactions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions, "count": len(transactions)})
}

type RefundRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	TransactionID string `json:"transaction_id" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

// Refund godoc
// @Summary      Refund a spend
// @Description  Reverse a spend transaction, restoring the user's balance. Each spend can be refunded at most once.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body RefundRequest true "Refund"
// @Success      200  {object}  entity.Transaction
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /admin/yaks/refund [post]
func (h *AdminHandler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txn, err := h.ledger.Refund(req.UserID, req.TransactionID, req.Reason)
	if err != nil {
		respondError(c, h.logger, err, "Failed to refund transaction")
		return
	}

	c.JSON(http.StatusOK, txn)
}

// ListFeatures godoc
// @Summary      List all features
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /admin/yaks/features [get]
func (h *AdminHandler) ListFeatures(c *gin.Context) {
	features, err := h.features.ListFeatures()
	if err != nil {
		h.logger.Error("Failed to list features: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch features"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"features": features, "count": len(features)})
}

type FeatureRequest struct {
	FeatureKey  string                 `json:"feature_key" binding:"required"`
	FeatureName string                 `json:"feature_name" binding:"required"`
	Description string                 `json:"description"`
	Cost        int                    `json:"cost" binding:"required,gt=0"`
	Category    string                 `json:"category" binding:"required,oneof=post topic user"`
	Enabled     *bool                  `json:"enabled"`
	Settings    map[string]interface{} `json:"settings"`
}

// CreateFeature godoc
// @Summary      Create a feature
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body FeatureRequest true "Feature"
// @Success      201  {object}  entity.Feature
// @Failure      400  {object}  map[string]string
// @Router       /admin/yaks/features [post]
func (h *AdminHandler) CreateFeature(c *gin.Context) {
	var req FeatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	feature, err := h.features.CreateFeature(&entity.Feature{
		Key:         req.FeatureKey,
		Name:        req.FeatureName,
		Description: req.Description,
		Cost:        req.Cost,
		Category:    entity.FeatureCategory(req.Category),
		Enabled:     enabled,
		Settings:    req.Settings,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, feature)
}

type FeatureUpdateRequest struct {
	FeatureName string                 `json:"feature_name"`
	Description string                 `json:"description"`
	Cost        int                    `json:"cost" binding:"omitempty,gt=0"`
	Enabled     *bool                  `json:"enabled"`
	Settings    map[string]interface{} `json:"settings"`
}

// UpdateFeature godoc
// @Summary      Update a feature
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Feature ID"
// @Param        request body FeatureUpdateRequest true "Changes"
// @Success      200  {object}  entity.Feature
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/yaks/features/{id} [put]
func (h *AdminHandler) UpdateFeature(c *gin.Context) {
	featureID := c.Param("id")

	var req FeatureUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.features.ListFeatures()
	if err != nil {
		h.logger.Error("Failed to load features: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update feature"})
		return
	}

	var current *entity.Feature
	for _, f := range existing {
		if f.ID == featureID {
			current = f
			break
		}
	}
	if current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feature not found"})
		return
	}

	if req.FeatureName != "" {
		current.Name = req.FeatureName
	}
	if req.Description != "" {
		current.Description = req.Description
	}
	if req.Cost > 0 {
		current.Cost = req.Cost
	}
	if req.Enabled != nil {
		current.Enabled = *req.Enabled
	}
	if req.Settings != nil {
		current.Settings = req.Settings
	}

	updated, err := h.features.UpdateFeature(current)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update feature")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// ListEarningRules godoc
// @Summary      List earning rules
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /admin/yaks/earning-rules [get]
func (h *AdminHandler) ListEarningRules(c *gin.Context) {
	rules, err := h.earning.ListRules()
	if err != nil {
		h.logger.Error("Failed to list earning rules: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch earning rules"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules, "count": len(rules)})
}

type EarningRuleUpdateRequest struct {
	ActionName    string                 `json:"action_name"`
	Description   string                 `json:"description"`
	Amount        *int                   `json:"amount" binding:"omitempty"`
	DailyCap      *int                   `json:"daily_cap"`
	MinTrustLevel *int                   `json:"min_trust_level"`
	Enabled       *bool                  `json:"enabled"`
	Settings      map[string]interface{} `json:"settings"`
}

// UpdateEarningRule godoc
// @Summary      Update an earning rule
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        action_key path string true "Rule action key"
// @Param        request body EarningRuleUpdateRequest true "Changes"
// @Success      200  {object}  entity.EarningRule
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/yaks/earning-rules/{action_key} [put]
func (h *AdminHandler) UpdateEarningRule(c *gin.Context) {
	actionKey := c.Param("action_key")

	var req EarningRuleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rules, err := h.earning.ListRules()
	if err != nil {
		h.logger.Error("Failed to load earning rules: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update earning rule"})
		return
	}

	var current *entity.EarningRule
	for _, r := range rules {
		if r.ActionKey == actionKey {
			current = r
			break
		}
	}
	if current == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Earning rule not found"})
		return
	}

	if req.ActionName != "" {
		current.ActionName = req.ActionName
	}
	if req.Description != "" {
		current.Description = req.Description
	}
	if req.Amount != nil {
		current.Amount = *req.Amount
	}
	if req.DailyCap != nil {
		current.DailyCap = *req.DailyCap
	}
	if req.MinTrustLevel != nil {
		current.MinTrustLevel = *req.MinTrustLevel
	}
	if req.Enabled != nil {
		current.Enabled = *req.Enabled
	}
	if req.Settings != nil {
		current.Settings = req.Settings
	}

	updated, err := h.earning.UpdateRule(current)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update earning rule")
		return
	}

	c.JSON(http.StatusOK, updated)
}

// ListAllPackages godoc
// @Summary      List all packages
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Router       /admin/yaks/packages [get]
func (h *AdminHandler) ListAllPackages(c *gin.Context) {
	packages, err := h.ledger.ListAllPackages()
	if err != nil {
		h.logger.Error("Failed to list packages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch packages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"packages": packages, "count": len(packages)})
}

type PackageRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	PriceCents  int    `json:"price_cents" binding:"required,gt=0"`
	Yaks        int    `json:"yaks" binding:"gte=0"`
	BonusYaks   int    `json:"bonus_yaks"`
	Enabled     *bool  `json:"enabled"`
	Position    int    `json:"position"`
}

// CreatePackage godoc
// @Summary      Create a package
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body PackageRequest true "Package"
// @Success      201  {object}  entity.Package
// @Failure      400  {object}  map[string]string
// @Router       /admin/yaks/packages [post]
func (h *AdminHandler) CreatePackage(c *gin.Context) {
	var req PackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	pkg, err := h.ledger.CreatePackage(&entity.Package{
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Yaks:        req.Yaks,
		BonusYaks:   req.BonusYaks,
		Enabled:     enabled,
		Position:    req.Position,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, pkg)
}

// UpdatePackage godoc
// @Summary      Update a package
// @Tags         admin
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Package ID"
// @Param        request body PackageRequest true "Changes"
// @Success      200  {object}  entity.Package
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/yaks/packages/{id} [put]
func (h *AdminHandler) UpdatePackage(c *gin.Context) {
	packageID := c.Param("id")

	var req PackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	pkg, err := h.ledger.UpdatePackage(&entity.Package{
		ID:          packageID,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Yaks:        req.Yaks,
		BonusYaks:   req.BonusYaks,
		Enabled:     enabled,
		Position:    req.Position,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to update package")
		return
	}

	c.JSON(http.StatusOK, pkg)
}

// DeletePackage godoc
// @Summary      Delete a package
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Package ID"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /admin/yaks/packages/{id} [delete]
func (h *AdminHandler) DeletePackage(c *gin.Context) {
	if err := h.ledger.DeletePackage(c.Param("id")); err != nil {
		respondError(c, h.logger, err, "Failed to delete package")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Package deleted"})
}
