package payment

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

type Refusal int

const (
	RefusalUnknown Refusal = iota
	RefusalInsufficientFunds
	RefusalCardExpired
	RefusalCardBlocked
	RefusalLimitExceeded
	RefusalFraudSuspected
)

var refusalText = map[Refusal]string{
	RefusalUnknown:           "unknown reason",
	RefusalInsufficientFunds: "insufficient funds",
	RefusalCardExpired:       "card expired",
	RefusalCardBlocked:       "card blocked",
	RefusalLimitExceeded:     "limit exceeded",
	RefusalFraudSuspected:    "fraud suspected",
}

func (r Refusal) String() string {
	return refusalText[r]
}

type GetResponseStatus interface {
	GetStatus() (bool, Refusal)
}

type RandomStatus struct{}

func (RandomStatus) GetStatus() (bool, Refusal) {
	return calcStatus(rand.Intn(101)) // 101 because Intn is exclusive of the upper bound
}

func calcStatus(randomInt int) (bool, Refusal) {
	if randomInt < 95 {
		return true, RefusalUnknown
	}
	reason := randomInt - 95
	if reason == 0 || reason > 5 {
		return false, RefusalUnknown
	}
	return false, Refusal(reason)
}

// Simulator stands in for the gateway in local and test environments.
type Simulator struct {
	status GetResponseStatus
}

func NewSimulator(s GetResponseStatus) *Simulator {
	return &Simulator{status: s}
}

func (s *Simulator) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	ok, refusal := s.status.GetStatus()
	txID := fmt.Sprintf("TXN-%s-%d", req.OrderID, time.Now().UnixNano())
	if ok {
		return &ChargeResult{Success: true, TransactionID: txID}, nil
	}
	return &ChargeResult{
		Success:       false,
		TransactionID: txID,
		ErrorMessage:  fmt.Sprintf("Payment failed: %v", refusal),
	}, nil
}

// Refund is always success for this implementation.
func (*Simulator) Refund(_ context.Context, req RefundRequest) (*RefundResult, error) {
	return &RefundResult{
		Success:             true,
		RefundTransactionID: fmt.Sprintf("RFD-%s-%d", req.OrderID, time.Now().UnixNano()),
	}, nil
}
