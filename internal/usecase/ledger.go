package usecase

import (
	"context"
	"errors"
	"fmt"

	"yaks/internal/entity"
	"yaks/internal/notify"
	"yaks/internal/repo/persistent"
	"yaks/pkg/logger"
)

type LedgerUseCase interface {
	GetSummary(userID string) (*entity.WalletSummary, error)
	ResolveFlair(userID string) (*entity.Flair, error)
	PurchasePackage(ctx context.Context, userID, packageID string) (*entity.Wallet, *entity.Transaction, error)
	Give(ctx context.Context, adminID, userID string, amount int, reason string) (*entity.Transaction, error)
	Refund(userID, transactionID, reason string) (*entity.Transaction, error)
	Stats() (*entity.LedgerStats, error)
	ListTransactions(filter persistent.TransactionFilter) ([]*entity.Transaction, error)

	ListPackages() ([]*entity.Package, error)
	ListAllPackages() ([]*entity.Package, error)
	CreatePackage(pkg *entity.Package) (*entity.Package, error)
	UpdatePackage(pkg *entity.Package) (*entity.Package, error)
	DeletePackage(id string) error
}

type ledgerUseCase struct {
	wallets    persistent.WalletRepository
	features   persistent.FeatureRepository
	uses       persistent.FeatureUseRepository
	packages   persistent.PackageRepository
	content    persistent.ContentRepository
	publisher  notify.BalancePublisher
	dollarRate float64
	log        *logger.Logger
}

func NewLedgerUseCase(
	wallets persistent.WalletRepository,
	features persistent.FeatureRepository,
	uses persistent.FeatureUseRepository,
	packages persistent.PackageRepository,
	content persistent.ContentRepository,
	publisher notify.BalancePublisher,
	dollarRate float64,
	log *logger.Logger,
) LedgerUseCase {
	return &ledgerUseCase{
		wallets:    wallets,
		features:   features,
		uses:       uses,
		packages:   packages,
		content:    content,
		publisher:  publisher,
		dollarRate: dollarRate,
		log:        log,
	}
}

const summaryTransactionLimit = 50

func (uc *ledgerUseCase) GetSummary(userID string) (*entity.WalletSummary, error) {
	wallet, err := uc.wallets.GetOrCreate(userID)
	if err != nil {
		return nil, err
	}

	transactions, err := uc.wallets.GetTransactions(userID, summaryTransactionLimit, 0)
	if err != nil {
		return nil, err
	}

	features, err := uc.features.ListEnabled()
	if err != nil {
		return nil, err
	}

	offers := make([]*entity.FeatureOffer, len(features))
	for i, f := range features {
		offers[i] = &entity.FeatureOffer{
			ID:          f.ID,
			Key:         f.Key,
			Name:        f.Name,
			Description: f.Description,
			Cost:        f.Cost,
			Category:    string(f.Category),
			Affordable:  f.Cost <= wallet.Balance,
		}
	}

	flair, err := uc.ResolveFlair(userID)
	if err != nil {
		uc.log.Warn("flair resolution failed for user %s: %v", userID, err)
		flair = nil
	}

	return &entity.WalletSummary{
		Balance:        wallet.Balance,
		LifetimeEarned: wallet.LifetimeEarned,
		LifetimeSpent:  wallet.LifetimeSpent,
		Transactions:   transactions,
		Features:       offers,
		Flair:          flair,
	}, nil
}

// ResolveFlair picks the display flair: an active custom_flair purchase
// wins, otherwise the fallback stored on the user record, otherwise none.
func (uc *ledgerUseCase) ResolveFlair(userID string) (*entity.Flair, error) {
	use, err := uc.uses.GetActiveUse(userID, "custom_flair")
	if err != nil {
		return nil, err
	}
	if use != nil {
		name, _ := use.FeatureData["name"].(string)
		color, _ := use.FeatureData["color"].(string)
		bg, _ := use.FeatureData["bg_color"].(string)
		return &entity.Flair{Name: name, Color: color, BGColor: bg, Source: "yak"}, nil
	}

	user, err := uc.content.GetUser(userID)
	if err != nil {
		if errors.Is(err, entity.ErrTargetNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if user.FlairName == "" {
		return nil, nil
	}
	return &entity.Flair{Name: user.FlairName, Color: user.FlairColor, Source: "default"}, nil
}

// PurchasePackage credits a package's yaks without charging anyone. Real
// payment processing happens elsewhere; this records the grant.
func (uc *ledgerUseCase) PurchasePackage(ctx context.Context, userID, packageID string) (*entity.Wallet, *entity.Transaction, error) {
	pkg, err := uc.packages.GetByID(packageID)
	if err != nil {
		return nil, nil, err
	}
	if !pkg.Enabled {
		return nil, nil, entity.ErrPackageNotFound
	}

	amount := pkg.TotalYaks()
	if pkg.Yaks == 0 {
		// Price-only packages convert at the configured dollar rate.
		amount = int(pkg.PriceUSD()*uc.dollarRate) + pkg.BonusYaks
	}
	if amount <= 0 {
		return nil, nil, entity.ErrInvalidAmount
	}

	txn, err := uc.wallets.Credit(userID, amount, entity.TransactionTypePurchase, persistent.TxParams{
		Source:      "stripe_purchase_stub",
		Description: fmt.Sprintf("Purchased package: %s", pkg.Name),
		Metadata: map[string]interface{}{
			"package_id":  pkg.ID,
			"price_cents": pkg.PriceCents,
			"bonus_yaks":  pkg.BonusYaks,
		},
	})
	if err != nil {
		return nil, nil, err
	}

	wallet, err := uc.wallets.GetOrCreate(userID)
	if err != nil {
		return nil, nil, err
	}
	uc.publishBalance(ctx, userID, wallet.Balance)

	return wallet, txn, nil
}

// Give is the audit-logged admin grant.
func (uc *ledgerUseCase) Give(ctx context.Context, adminID, userID string, amount int, reason string) (*entity.Transaction, error) {
	txn, err := uc.wallets.Credit(userID, amount, entity.TransactionTypeAdmin, persistent.TxParams{
		Source:      "admin_grant",
		Description: reason,
		Metadata:    map[string]interface{}{"granted_by": adminID},
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info("admin %s granted %d yaks to user %s: %s", adminID, amount, userID, reason)

	if wallet, err := uc.wallets.GetOrCreate(userID); err == nil {
		uc.publishBalance(ctx, userID, wallet.Balance)
	}
	return txn, nil
}

func (uc *ledgerUseCase) Refund(userID, transactionID, reason string) (*entity.Transaction, error) {
	return uc.wallets.Refund(userID, transactionID, reason)
}

func (uc *ledgerUseCase) Stats() (*entity.LedgerStats, error) {
	return uc.wallets.Stats(20)
}

func (uc *ledgerUseCase) ListTransactions(filter persistent.TransactionFilter) ([]*entity.Transaction, error) {
	return uc.wallets.ListTransactions(filter)
}

func (uc *ledgerUseCase) ListPackages() ([]*entity.Package, error) {
	return uc.packages.ListEnabled()
}

func (uc *ledgerUseCase) ListAllPackages() ([]*entity.Package, error) {
	return uc.packages.List()
}

func (uc *ledgerUseCase) CreatePackage(pkg *entity.Package) (*entity.Package, error) {
	return uc.packages.Create(pkg)
}

func (uc *ledgerUseCase) UpdatePackage(pkg *entity.Package) (*entity.Package, error) {
	return uc.packages.Update(pkg)
}

func (uc *ledgerUseCase) DeletePackage(id string) error {
	return uc.packages.Delete(id)
}

func (uc *ledgerUseCase) publishBalance(ctx context.Context, userID string, balance int) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.PublishBalance(ctx, userID, balance); err != nil {
		uc.log.Warn("balance publish failed for user %s: %v", userID, err)
	}
}
