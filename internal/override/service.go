package override

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fieldserve/balance-ledger/internal/adapter"
	"github.com/fieldserve/balance-ledger/internal/domain"
	"github.com/fieldserve/balance-ledger/internal/history"
	"github.com/fieldserve/balance-ledger/internal/logger"
	"github.com/fieldserve/balance-ledger/internal/messaging"
	"github.com/fieldserve/balance-ledger/internal/store"
)

const maxDescriptionLength = 500

// Actor is the resolved identity performing an operation. The security
// layer resolves it before the service is invoked; an actor without a
// company id or user id fails fast, before any database access.
type Actor struct {
	CompanyID string
	UserID    string
	UserName  string
	IPAddress *string
}

// Result is the outcome of one override operation. Validation and
// concurrency failures come back as Success=false with a human-readable
// message, never as an error at the API boundary.
type Result struct {
	Success           bool             `json:"success"`
	OperationID       *string          `json:"operation_id,omitempty"`
	PreviousBalance   *decimal.Decimal `json:"previous_balance,omitempty"`
	NewBalance        decimal.Decimal  `json:"new_balance"`
	Difference        *decimal.Decimal `json:"difference,omitempty"`
	Message           string           `json:"message"`
	Error             string           `json:"error,omitempty"`
	PendingApprovalID *string          `json:"pending_approval_id,omitempty"`
}

// Service orchestrates the business-level balance operations against the
// balance store, operation log and history service. Every operation
// follows the same shape: validate, load, compute, persist (balance +
// operation log in one transaction), then record history and publish an
// event, both best-effort.
type Service struct {
	store     store.Store
	history   *history.Service
	publisher messaging.Publisher
	policy    ApprovalPolicy
	clock     adapter.Clock
}

// Option configures the service
type Option func(*Service)

// WithPublisher wires a message publisher for balance-change events
func WithPublisher(p messaging.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithApprovalPolicy replaces the default approve-everything policy
func WithApprovalPolicy(p ApprovalPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithClock replaces the real clock, used by tests
func WithClock(c adapter.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a new override service
func NewService(st store.Store, hist *history.Service, opts ...Option) *Service {
	s := &Service{
		store:   st,
		history: hist,
		policy:  NewAutoApprovePolicy(),
		clock:   adapter.NewClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MoveCashToSafe moves cash into the safe: the tracked cash balance
// decreases by amount. Amount must be strictly positive.
func (s *Service) MoveCashToSafe(ctx context.Context, actor Actor, amount decimal.Decimal, description string) Result {
	if res, ok := s.validate(actor, description); !ok {
		return res
	}
	if !amount.IsPositive() {
		return failure("amount must be greater than zero")
	}

	return s.apply(ctx, actor, mutation{
		balanceType:   domain.BalanceTypeCash,
		operationType: domain.OperationTypeCashToSafe,
		amount:        amount,
		description:   description,
		compute: func(current decimal.Decimal) decimal.Decimal {
			return current.Sub(amount)
		},
		message: fmt.Sprintf("Moved %s from cash to safe", amount.StringFixed(2)),
	})
}

// MoveCashFromSafe moves cash out of the safe: the tracked cash balance
// increases by amount. Amount must be strictly positive.
func (s *Service) MoveCashFromSafe(ctx context.Context, actor Actor, amount decimal.Decimal, description string) Result {
	if res, ok := s.validate(actor, description); !ok {
		return res
	}
	if !amount.IsPositive() {
		return failure("amount must be greater than zero")
	}

	return s.apply(ctx, actor, mutation{
		balanceType:   domain.BalanceTypeCash,
		operationType: domain.OperationTypeCashFromSafe,
		amount:        amount,
		description:   description,
		compute: func(current decimal.Decimal) decimal.Decimal {
			return current.Add(amount)
		},
		message: fmt.Sprintf("Moved %s from safe to cash", amount.StringFixed(2)),
	})
}

// ReconcileWithBankStatement sets the bank balance to the statement value
func (s *Service) ReconcileWithBankStatement(ctx context.Context, actor Actor, statementBalance decimal.Decimal, description string) Result {
	if res, ok := s.validate(actor, description); !ok {
		return res
	}
	if statementBalance.IsNegative() {
		return failure("statement balance must not be negative")
	}

	return s.apply(ctx, actor, mutation{
		balanceType:   domain.BalanceTypeBank,
		operationType: domain.OperationTypeBankReconciliation,
		amount:        statementBalance,
		description:   description,
		compute: func(decimal.Decimal) decimal.Decimal {
			return statementBalance
		},
		message: fmt.Sprintf("Bank balance reconciled to %s", statementBalance.StringFixed(2)),
	})
}

// PerformCashInventory sets the cash balance to the physically counted
// amount. Counting the same amount twice is valid and yields a second
// operation with a zero delta.
func (s *Service) PerformCashInventory(ctx context.Context, actor Actor, countedAmount decimal.Decimal, notes string) Result {
	if res, ok := s.validate(actor, notes); !ok {
		return res
	}
	if countedAmount.IsNegative() {
		return failure("counted amount must not be negative")
	}

	return s.apply(ctx, actor, mutation{
		balanceType:   domain.BalanceTypeCash,
		operationType: domain.OperationTypeInventoryAdjustment,
		amount:        countedAmount,
		description:   notes,
		compute: func(decimal.Decimal) decimal.Decimal {
			return countedAmount
		},
		message: fmt.Sprintf("Cash inventory recorded: %s", countedAmount.StringFixed(2)),
	})
}

// OverrideBalance sets the chosen balance to an arbitrary non-negative
// value. An optional approver id is passed through to the approval policy.
func (s *Service) OverrideBalance(ctx context.Context, actor Actor, balanceType domain.BalanceType, newBalance decimal.Decimal, reason string, approverID *string) Result {
	if res, ok := s.validate(actor, reason); !ok {
		return res
	}
	if !domain.IsValidBalanceType(balanceType) {
		return failure(fmt.Sprintf("unknown balance type: %s", balanceType))
	}
	if newBalance.IsNegative() {
		return failure("new balance must not be negative")
	}

	return s.apply(ctx, actor, mutation{
		balanceType:   balanceType,
		operationType: domain.OperationTypeManualOverride,
		amount:        newBalance,
		description:   reason,
		approverID:    approverID,
		compute: func(decimal.Decimal) decimal.Decimal {
			return newBalance
		},
		message: fmt.Sprintf("Balance manually set to %s", newBalance.StringFixed(2)),
	})
}

// mutation describes one computed balance change about to be applied
type mutation struct {
	balanceType   domain.BalanceType
	operationType domain.OperationType
	amount        decimal.Decimal
	description   string
	documentID    *string
	approverID    *string
	compute       func(current decimal.Decimal) decimal.Decimal
	message       string
}

// apply runs the shared load-compute-persist-record pipeline. A stale
// version surfaces as a retryable failure result; history and event
// publishing never change the outcome.
func (s *Service) apply(ctx context.Context, actor Actor, m mutation) Result {
	account, err := s.store.GetCompanyBalance(ctx, actor.CompanyID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return failure("no balance account exists for this company")
		}
		return internalFailure(ctx, err)
	}

	previous := account.Balance(m.balanceType)
	newBalance := m.compute(previous)

	// Additive operations must not drive a balance below zero; absolute
	// sets were validated non-negative before compute.
	if newBalance.IsNegative() {
		return failure(fmt.Sprintf("insufficient %s balance: %s available",
			strings.ToLower(string(m.balanceType)), previous.StringFixed(2)))
	}

	decision := s.policy.Evaluate(ctx, ApprovalRequest{
		CompanyID:      actor.CompanyID,
		UserID:         actor.UserID,
		BalanceType:    m.balanceType,
		OperationType:  m.operationType,
		CurrentBalance: previous,
		NewBalance:     newBalance,
		Amount:         m.amount,
		Description:    m.description,
		ApproverID:     m.approverID,
	})
	if !decision.Approved {
		logger.InfoCtx(ctx, "Operation held for approval",
			zap.String("company_id", actor.CompanyID),
			zap.String("operation_type", string(m.operationType)),
			zap.String("reason", decision.Reason),
		)
		res := failure(decision.Reason)
		res.PendingApprovalID = decision.PendingApprovalID
		return res
	}

	operation, err := s.store.ApplyBalanceMutation(ctx, store.ApplyBalanceMutationInput{
		CompanyID:       actor.CompanyID,
		BalanceType:     m.balanceType,
		ExpectedVersion: account.Version,
		NewBalance:      newBalance,
		Operation: store.OperationRecord{
			OperationType:   m.operationType,
			Amount:          m.amount,
			PreviousBalance: previous,
			NewBalance:      newBalance,
			UserID:          actor.UserID,
			UserName:        actor.UserName,
			Description:     m.description,
			DocumentID:      m.documentID,
			ApprovedBy:      decision.ApprovedBy,
			ApprovalDate:    decision.ApprovalDate,
			IsApproved:      true,
			IPAddress:       actor.IPAddress,
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			return failure("balance was modified concurrently, please retry")
		}
		if errors.Is(err, domain.ErrAccountNotFound) {
			return failure("no balance account exists for this company")
		}
		return internalFailure(ctx, err)
	}

	// Balance change is committed; everything below is best-effort.
	s.history.Record(ctx, history.RecordInput{
		CompanyID:     actor.CompanyID,
		BalanceType:   m.balanceType,
		BalanceBefore: previous,
		BalanceAfter:  newBalance,
		OperationType: m.operationType,
		Description:   m.description,
		DocumentID:    m.documentID,
		OperationID:   &operation.ID,
		UserID:        actor.UserID,
		IPAddress:     actor.IPAddress,
		Metadata: &domain.ChangeMetadata{
			Source: "override_service",
		},
	})

	s.publishChange(ctx, actor, operation.ID, m, previous, newBalance)

	difference := newBalance.Sub(previous)
	return Result{
		Success:         true,
		OperationID:     &operation.ID,
		PreviousBalance: &previous,
		NewBalance:      newBalance,
		Difference:      &difference,
		Message:         m.message,
	}
}

// publishChange emits the balance-change event when a publisher is wired.
// Failures are logged and swallowed.
func (s *Service) publishChange(ctx context.Context, actor Actor, operationID string, m mutation, previous, newBalance decimal.Decimal) {
	if s.publisher == nil {
		return
	}

	event := &domain.BalanceChangedEvent{
		CompanyID:     actor.CompanyID,
		BalanceType:   m.balanceType,
		OperationType: m.operationType,
		OperationID:   operationID,
		BalanceBefore: previous,
		BalanceAfter:  newBalance,
		AmountChanged: newBalance.Sub(previous),
		UserID:        actor.UserID,
		Timestamp:     s.clock.Now().UTC(),
	}

	if err := s.publisher.PublishBalanceChanged(ctx, event); err != nil {
		logger.WarnCtx(ctx, "Failed to publish balance-change event",
			zap.Error(err),
			zap.String("company_id", actor.CompanyID),
			zap.String("operation_id", operationID),
		)
	}
}

// validate enforces the shared preconditions: resolved identity and a
// usable description. Runs before any store access.
func (s *Service) validate(actor Actor, description string) (Result, bool) {
	if actor.CompanyID == "" || actor.UserID == "" {
		return failure("unauthenticated: company and user must be resolved"), false
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return failure("description is required"), false
	}
	if len(description) > maxDescriptionLength {
		return failure(fmt.Sprintf("description exceeds %d characters", maxDescriptionLength)), false
	}
	return Result{}, true
}

// failure builds a validation/conflict result
func failure(message string) Result {
	return Result{
		Success: false,
		Message: message,
	}
}

// internalFailure logs an unexpected store error and wraps it into a result
func internalFailure(ctx context.Context, err error) Result {
	logger.ErrorCtx(ctx, err)
	return Result{
		Success: false,
		Message: "operation failed due to an internal error",
		Error:   err.Error(),
	}
}
