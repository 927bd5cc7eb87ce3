package cron

import (
	"context"
	"fmt"

	"github.com/naijamart/storefront-backend/internal/wallet"
	"github.com/naijamart/storefront-backend/pkg/logger"
)

const walletAuditLimit = 100

type walletAuditor interface {
	Audit(ctx context.Context, limit int) ([]wallet.Reconciliation, error)
}

// NewWalletAuditJob compares every wallet balance with its ledger. Drift is
// reported as a job failure so it shows on the failure counter.
func NewWalletAuditJob(logg *logger.Logger, wallets walletAuditor) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if wallets == nil {
		return nil, fmt.Errorf("wallet service required")
	}
	return &walletAuditJob{logg: logg, wallets: wallets}, nil
}

type walletAuditJob struct {
	logg    *logger.Logger
	wallets walletAuditor
}

func (j *walletAuditJob) Name() string { return "wallet-audit" }

func (j *walletAuditJob) Run(ctx context.Context) error {
	drifted, err := j.wallets.Audit(ctx, walletAuditLimit)
	if err != nil {
		return fmt.Errorf("wallet audit: %w", err)
	}
	if len(drifted) > 0 {
		return fmt.Errorf("wallet audit: %d wallets drifted from their ledger", len(drifted))
	}
	return nil
}
