package domain

import (
	"fmt"
	"math/big"
)

// PaymentMethod is how the customer paid.
type PaymentMethod int16

const (
	MethodUPI PaymentMethod = iota + 1
	MethodCash
	MethodCheque
	MethodDemandDraft
	MethodBankTransfer
	MethodLoan
)

var methodNames = map[PaymentMethod]string{
	MethodUPI:          "upi",
	MethodCash:         "cash",
	MethodCheque:       "cheque",
	MethodDemandDraft:  "demand_draft",
	MethodBankTransfer: "bank_transfer",
	MethodLoan:         "loan",
}

func (m PaymentMethod) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int16(m))
}

func ParsePaymentMethod(name string) (PaymentMethod, error) {
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown payment method %q", name)
}

// PaymentStatus is only changed by the approval cascade after creation.
type PaymentStatus int16

const (
	PaymentPending PaymentStatus = iota + 1
	PaymentCompleted
	PaymentFailed
)

var paymentStatusNames = map[PaymentStatus]string{
	PaymentPending:   "pending",
	PaymentCompleted: "completed",
	PaymentFailed:    "failed",
}

func (s PaymentStatus) String() string {
	if name, ok := paymentStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int16(s))
}

func ParsePaymentStatus(name string) (PaymentStatus, error) {
	for s, n := range paymentStatusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown payment status %q", name)
}

// PaymentPurpose tags what the money is for.
type PaymentPurpose string

const (
	PurposeToken   PaymentPurpose = "token"
	PurposeBalance PaymentPurpose = "balance"
)

func ParsePaymentPurpose(name string) (PaymentPurpose, error) {
	switch p := PaymentPurpose(name); p {
	case PurposeToken, PurposeBalance:
		return p, nil
	}
	return "", fmt.Errorf("unknown payment purpose %q", name)
}

// TotalAmountCents multiplies a plot price in cents by an area in hundredths
// of a unit and rounds half up to whole cents.
func TotalAmountCents(priceCents, areaHundredths int64) int64 {
	product := new(big.Int).Mul(big.NewInt(priceCents), big.NewInt(areaHundredths))
	product.Add(product, big.NewInt(50))
	product.Quo(product, big.NewInt(100))
	return product.Int64()
}
