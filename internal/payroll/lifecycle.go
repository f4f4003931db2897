package payroll

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-erp/atlas-payroll/internal/authz"
)

// The lifecycle state machine. Draft is initial, Paid is terminal. Entry
// mutation is permitted only in Draft; totals change only through the
// Calculated transition. Capability checks belong to the authorization
// collaborator; this file only encodes the graph and the stamp bookkeeping.

type transitionKey struct {
	from PeriodStatus
	to   PeriodStatus
}

type transitionRule struct {
	// capability gating the transition; empty means any authenticated actor.
	capability authz.Capability
	// requiresEntries rejects the transition when the period has no entries.
	requiresEntries bool
	// recalculates marks transitions whose side effect is persisting totals.
	recalculates bool
}

var transitions = map[transitionKey]transitionRule{
	{StatusDraft, StatusLocked}:        {capability: authz.CapabilityLock, requiresEntries: true},
	{StatusLocked, StatusDraft}:        {capability: authz.CapabilityUnlock},
	{StatusLocked, StatusCalculated}:   {capability: authz.CapabilityLock, recalculates: true},
	{StatusCalculated, StatusLocked}:   {capability: authz.CapabilityLock},
	{StatusCalculated, StatusApproved}: {capability: authz.CapabilityApprove},
	{StatusApproved, StatusPaid}:       {capability: authz.CapabilityPay},
	{StatusApproved, StatusCalculated}: {capability: authz.CapabilityApprove},
}

// transitionRuleFor returns the rule governing from→to, if the edge exists.
func transitionRuleFor(from, to PeriodStatus) (transitionRule, bool) {
	rule, ok := transitions[transitionKey{from: from, to: to}]
	return rule, ok
}

// applyTransition returns a copy of the period with the target status and the
// stamp bookkeeping for that edge applied. Callers are responsible for having
// validated the edge and its preconditions first.
func applyTransition(p Period, to PeriodStatus, actorID int64, now time.Time) Period {
	from := p.Status
	p.Status = to
	p.Updated = AuditStamp{ActorID: actorID, At: now}

	switch {
	case from == StatusDraft && to == StatusLocked:
		p.Locked = &AuditStamp{ActorID: actorID, At: now}
	case from == StatusLocked && to == StatusDraft:
		p.Locked = nil
		p.CalculatedAt = nil
	case from == StatusLocked && to == StatusCalculated:
		at := now
		p.CalculatedAt = &at
	case from == StatusCalculated && to == StatusLocked:
		// Recalculation requested: totals are cleared and recomputed on the
		// next Calculated transition.
		p.Totals = zeroTotals()
		p.CalculatedAt = nil
	case from == StatusCalculated && to == StatusApproved:
		p.Approved = &AuditStamp{ActorID: actorID, At: now}
	case from == StatusApproved && to == StatusCalculated:
		// Correction before payment: totals are retained until recompute.
		p.Approved = nil
	case from == StatusApproved && to == StatusPaid:
		p.Paid = &AuditStamp{ActorID: actorID, At: now}
	}
	return p
}

func zeroTotals() Totals {
	z := decimal.Zero
	return Totals{Gross: z, Net: z, TaxA: z, TaxB: z, EmployerCost: z}
}
