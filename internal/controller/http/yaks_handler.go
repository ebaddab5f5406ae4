package http

import (
	"errors"
	"net/http"

	"yaks/internal/entity"
	"yaks/internal/usecase"
	"yaks/pkg/logger"

	"github.com/gin-gonic/gin"
)

type YaksHandler struct {
	ledger   usecase.LedgerUseCase
	features usecase.FeatureUseCase
	earning  usecase.EarningUseCase
	logger   *logger.Logger
}

func NewYaksHandler(ledger usecase.LedgerUseCase, features usecase.FeatureUseCase, earning usecase.EarningUseCase, logger *logger.Logger) *YaksHandler {
	return &YaksHandler{
		ledger:   ledger,
		features: features,
		earning:  earning,
		logger:   logger,
	}
}

// GetWallet godoc
// @Summary      Get wallet summary
// @Description  Get the authenticated user's balance, recent transactions, purchasable features and resolved flair
// @Tags         yaks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  entity.WalletSummary
// @Failure      500  {object}  map[string]string
// @Router       /yaks [get]
func (h *YaksHandler) GetWallet(c *gin.Context) {
	userID := c.GetString("user_id")

	summary, err := h.ledger.GetSummary(userID)
	if err != nil {
		h.logger.Error("Failed to load wallet summary for %s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

type SpendRequest struct {
	FeatureKey  string                 `json:"feature_key" binding:"required"`
	PostID      string                 `json:"post_id"`
	TopicID     string                 `json:"topic_id"`
	FeatureData map[string]interface{} `json:"feature_data"`
}

// Spend godoc
// @Summary      Spend yaks on a feature
// @Description  Purchase a feature and apply its effect to a post, topic, or the user's own profile
// @Tags         yaks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SpendRequest true "Spend request"
// @Success      200  {object}  entity.SpendResult
// @Failure      400  {object}  map[string]string
// @Failure      402  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /yaks/spend [post]
func (h *YaksHandler) Spend(c *gin.Context) {
	userID := c.GetString("user_id")

	var req SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.features.Spend(usecase.SpendRequest{
		UserID:      userID,
		FeatureKey:  req.FeatureKey,
		PostID:      req.PostID,
		TopicID:     req.TopicID,
		FeatureData: req.FeatureData,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to spend yaks")
		return
	}

	c.JSON(http.StatusOK, result)
}

type PurchaseRequest struct {
	PackageID string `json:"package_id" binding:"required"`
}

// PurchasePackage godoc
// @Summary      Purchase a yak package
// @Description  Credit a package's yaks to the wallet. Payment collection is stubbed out.
// @Tags         yaks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body PurchaseRequest true "Package purchase"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /yaks/purchase [post]
func (h *YaksHandler) PurchasePackage(c *gin.Context) {
	userID := c.GetString("user_id")

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wallet, txn, err := h.ledger.PurchasePackage(c.Request.Context(), userID, req.PackageID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to purchase package")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"new_balance": wallet.Balance,
		"transaction": txn,
	})
}

// ListPackages godoc
// @Summary      List yak packages
// @Description  Get the enabled purchase packages ordered by position
// @Tags         yaks
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  map[string]string
// @Router       /yaks/packages [get]
func (h *YaksHandler) ListPackages(c *gin.Context) {
	packages, err := h.ledger.ListPackages()
	if err != nil {
		h.logger.Error("Failed to list packages: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch packages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"packages": packages, "count": len(packages)})
}

// CanEarn godoc
// @Summary      Check earning eligibility
// @Description  Preview whether the user can currently earn from an action, without crediting
// @Tags         yaks
// @Produce      json
// @Security     BearerAuth
// @Param        action_key path string true "Earning rule action key"
// @Success      200  {object}  entity.CanEarnResult
// @Router       /yaks/earnings/{action_key} [get]
func (h *YaksHandler) CanEarn(c *gin.Context) {
	userID := c.GetString("user_id")
	actionKey := c.Param("action_key")

	c.JSON(http.StatusOK, h.earning.CanEarn(userID, actionKey))
}

type EventRequest struct {
	ActionKey string `json:"action_key" binding:"required"`
	PostID    string `json:"post_id"`
	TopicID   string `json:"topic_id"`
}

// HandleEvent godoc
// @Summary      Report a platform event
// @Description  Run the earning pipeline for an action the user performed. Always returns 200; awarded tells whether yaks were credited.
// @Tags         yaks
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body EventRequest true "Event"
// @Success      200  {object}  map[string]bool
// @Failure      400  {object}  map[string]string
// @Router       /yaks/events [post]
func (h *YaksHandler) HandleEvent(c *gin.Context) {
	userID := c.GetString("user_id")

	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	awarded := h.earning.Award(c.Request.Context(), userID, req.ActionKey, req.PostID, req.TopicID)
	c.JSON(http.StatusOK, gin.H{"awarded": awarded})
}

// respondError maps domain errors to status codes; anything unknown is a
// logged 500 with a generic message.
func respondError(c *gin.Context, log *logger.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, entity.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrFeatureNotFound),
		errors.Is(err, entity.ErrTargetNotFound),
		errors.Is(err, entity.ErrPackageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrAlreadyApplied),
		errors.Is(err, entity.ErrAlreadyRefunded):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrInvalidAmount),
		errors.Is(err, entity.ErrNotRefundable),
		errors.Is(err, entity.ErrYaksDisabled):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, entity.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		log.Error("%s: %v", fallback, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
