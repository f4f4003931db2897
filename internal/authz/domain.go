package authz

// Capability names a single payroll action an actor may perform.
type Capability string

const (
	// CapabilityLock allows locking a draft period.
	CapabilityLock Capability = "payroll.period.lock"
	// CapabilityUnlock allows reopening a locked period and retiring periods.
	CapabilityUnlock Capability = "payroll.period.unlock"
	// CapabilityApprove allows approving a calculated period.
	CapabilityApprove Capability = "payroll.period.approve"
	// CapabilityPay allows marking an approved period as paid.
	CapabilityPay Capability = "payroll.period.pay"
)
