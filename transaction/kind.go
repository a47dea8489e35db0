package transaction

import (
	"fmt"
	"strconv"
)

// Kind classifies a transaction. The numeric codes are persisted and must
// not be renumbered.
type Kind int

const (
	KindDeposit     Kind = 0
	KindWithdrawal  Kind = 1
	KindTransfer    Kind = 2
	KindGroupPayout Kind = 3
	KindPurchase    Kind = 4
	KindSale        Kind = 5
	KindFee         Kind = 6
)

// Class groups kinds for financial reporting.
type Class int

const (
	ClassNeutral Class = iota
	ClassIncome
	ClassExpense
)

var kindNames = [...]string{
	KindDeposit:     "deposit",
	KindWithdrawal:  "withdrawal",
	KindTransfer:    "transfer",
	KindGroupPayout: "group_payout",
	KindPurchase:    "purchase",
	KindSale:        "sale",
	KindFee:         "fee",
}

// Kinds returns every kind in code order.
func Kinds() []Kind {
	return []Kind{KindDeposit, KindWithdrawal, KindTransfer, KindGroupPayout, KindPurchase, KindSale, KindFee}
}

// IsValid reports whether k is one of the defined kinds.
func (k Kind) IsValid() bool { return k >= KindDeposit && k <= KindFee }

func (k Kind) String() string {
	if !k.IsValid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Class returns the reporting class of k.
func (k Kind) Class() Class {
	switch k {
	case KindDeposit, KindSale:
		return ClassIncome
	case KindWithdrawal, KindPurchase:
		return ClassExpense
	default:
		return ClassNeutral
	}
}

func (c Class) String() string {
	switch c {
	case ClassIncome:
		return "income"
	case ClassExpense:
		return "expense"
	default:
		return "neutral"
	}
}

// ParseKind accepts a kind name or its numeric code.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	if code, err := strconv.Atoi(s); err == nil && Kind(code).IsValid() {
		return Kind(code), nil
	}
	return 0, fmt.Errorf("transaction: unknown kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("transaction: cannot marshal invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(data []byte) error {
	parsed, err := ParseKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
