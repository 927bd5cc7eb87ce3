package enums

// WalletTransactionType labels a wallet ledger entry.
type WalletTransactionType string

const (
	WalletTxnCredit WalletTransactionType = "credit"
	WalletTxnDebit  WalletTransactionType = "debit"
)

var walletTransactionTypes = newSet("wallet transaction type",
	WalletTxnCredit,
	WalletTxnDebit,
)

func (w WalletTransactionType) String() string { return string(w) }

func (w WalletTransactionType) IsValid() bool { return walletTransactionTypes.has(w) }

func ParseWalletTransactionType(value string) (WalletTransactionType, error) { return walletTransactionTypes.parse(value) }
