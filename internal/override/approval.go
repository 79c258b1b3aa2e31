package override

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldserve/balance-ledger/internal/domain"
)

// ApprovalRequest carries everything a policy needs to decide whether an
// operation may commit without a second approver.
type ApprovalRequest struct {
	CompanyID      string
	UserID         string
	BalanceType    domain.BalanceType
	OperationType  domain.OperationType
	CurrentBalance decimal.Decimal
	NewBalance     decimal.Decimal
	Amount         decimal.Decimal
	Description    string
	// ApproverID is the second approver supplied by the caller, if any
	ApproverID *string
}

// ApprovalDecision is the outcome of an approval policy evaluation.
// When Approved is false the operation is not executed; the caller gets
// the pending approval id back so a follow-up flow can resolve it.
type ApprovalDecision struct {
	Approved          bool
	ApprovedBy        *string
	ApprovalDate      *time.Time
	PendingApprovalID *string
	Reason            string
}

// ApprovalPolicy decides whether a balance operation needs a second
// approver before it commits. The default policy approves everything;
// gating is strictly opt-in.
type ApprovalPolicy interface {
	Evaluate(ctx context.Context, req ApprovalRequest) ApprovalDecision
}

// AutoApprovePolicy approves every operation. This is the default: the
// approval fields exist in the model but no gating is enforced.
type AutoApprovePolicy struct{}

// NewAutoApprovePolicy creates the default approve-everything policy
func NewAutoApprovePolicy() ApprovalPolicy {
	return &AutoApprovePolicy{}
}

func (p *AutoApprovePolicy) Evaluate(_ context.Context, req ApprovalRequest) ApprovalDecision {
	decision := ApprovalDecision{Approved: true}
	if req.ApproverID != nil && *req.ApproverID != "" {
		now := time.Now().UTC()
		decision.ApprovedBy = req.ApproverID
		decision.ApprovalDate = &now
	}
	return decision
}

// ThresholdPolicy requires a second approver for operations whose absolute
// delta exceeds MaxDelta. Not wired by default; exists to show the seam.
type ThresholdPolicy struct {
	MaxDelta decimal.Decimal
}

// NewThresholdPolicy creates a policy gating deltas above the given limit
func NewThresholdPolicy(maxDelta decimal.Decimal) ApprovalPolicy {
	return &ThresholdPolicy{MaxDelta: maxDelta}
}

func (p *ThresholdPolicy) Evaluate(_ context.Context, req ApprovalRequest) ApprovalDecision {
	delta := req.NewBalance.Sub(req.CurrentBalance).Abs()
	if delta.LessThanOrEqual(p.MaxDelta) {
		return ApprovalDecision{Approved: true}
	}

	if req.ApproverID != nil && *req.ApproverID != "" {
		now := time.Now().UTC()
		return ApprovalDecision{
			Approved:     true,
			ApprovedBy:   req.ApproverID,
			ApprovalDate: &now,
		}
	}

	pendingID := uuid.NewString()
	return ApprovalDecision{
		Approved:          false,
		PendingApprovalID: &pendingID,
		Reason:            "operation exceeds approval threshold and no approver was provided",
	}
}
