package domain

// Status is the shared active/inactive flag carried by every mutable entity.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// OwnerKind distinguishes the ownership roles a person can hold on a unit.
type OwnerKind string

const (
	OwnerTitular OwnerKind = "titular"
	OwnerSpouse  OwnerKind = "spouse"
	OwnerCoOwner OwnerKind = "co_owner"
	OwnerChild   OwnerKind = "child"
)

// Relation is the declared family relation of a household member.
type Relation string

const (
	RelationFather   Relation = "father"
	RelationMother   Relation = "mother"
	RelationHusband  Relation = "husband"
	RelationWife     Relation = "wife"
	RelationSon      Relation = "son"
	RelationDaughter Relation = "daughter"
	RelationOther    Relation = "other"
)

// Valid reports whether r is one of the fixed relation values.
func (r Relation) Valid() bool {
	switch r {
	case RelationFather, RelationMother, RelationHusband, RelationWife,
		RelationSon, RelationDaughter, RelationOther:
		return true
	}
	return false
}

// ExclusivePerUnit reports whether at most one active holder of this
// relation may exist per housing unit.
func (r Relation) ExclusivePerUnit() bool {
	switch r {
	case RelationFather, RelationMother, RelationHusband, RelationWife:
		return true
	}
	return false
}

// AccountEventKind enumerates the append-only account event log entries.
type AccountEventKind string

const (
	EventAccountCreated     AccountEventKind = "account_created"
	EventAccountActivated   AccountEventKind = "account_activated"
	EventAccountDeactivated AccountEventKind = "account_deactivated"
	EventAccountLocked      AccountEventKind = "account_locked"
	EventAccountUnlocked    AccountEventKind = "account_unlocked"
	EventAccountDeleted     AccountEventKind = "account_deleted"
	EventLoginSuccess       AccountEventKind = "login_success"
	EventLoginFailure       AccountEventKind = "login_failure"
	EventPasswordChanged    AccountEventKind = "password_changed"
)

// TokenState is the access-token lifecycle. Valid is the only non-terminal
// state; Expired is computed lazily from the clock and never written by a
// background job.
type TokenState string

const (
	TokenValid   TokenState = "valid"
	TokenExpired TokenState = "expired"
	TokenUsed    TokenState = "used"
	TokenVoid    TokenState = "void"
)

// AccessKind is the physical-access channel of an attempt.
type AccessKind string

const (
	AccessQRResident    AccessKind = "qr_resident"
	AccessQRVisitor     AccessKind = "qr_visitor"
	AccessVisitorNoQR   AccessKind = "visitor_no_qr"
	AccessPedestrian    AccessKind = "visitor_pedestrian"
	AccessResidentAuto  AccessKind = "resident_auto"
	AccessGuardManual   AccessKind = "guard_manual"
)

// Valid reports whether k is a recognised access channel.
func (k AccessKind) Valid() bool {
	switch k {
	case AccessQRResident, AccessQRVisitor, AccessVisitorNoQR,
		AccessPedestrian, AccessResidentAuto, AccessGuardManual:
		return true
	}
	return false
}

// AccessOutcome is the terminal result of one access attempt.
type AccessOutcome string

const (
	OutcomeAuthorized       AccessOutcome = "authorized"
	OutcomeRejected         AccessOutcome = "rejected"
	OutcomeNotAuthorized    AccessOutcome = "not_authorized"
	OutcomeBiometricFailure AccessOutcome = "biometric_failure"
	OutcomePlateFailure     AccessOutcome = "plate_failure"
	OutcomeCodeExpired      AccessOutcome = "code_expired"
	OutcomeCodeInvalid      AccessOutcome = "code_invalid"
	OutcomeCodeUsed         AccessOutcome = "code_used"
	OutcomeAccountLocked    AccessOutcome = "account_locked"
	OutcomeSystemError      AccessOutcome = "system_error"
	OutcomeCancelled        AccessOutcome = "cancelled"
)

// Valid reports whether o is a recognised outcome.
func (o AccessOutcome) Valid() bool {
	switch o {
	case OutcomeAuthorized, OutcomeRejected, OutcomeNotAuthorized,
		OutcomeBiometricFailure, OutcomePlateFailure, OutcomeCodeExpired,
		OutcomeCodeInvalid, OutcomeCodeUsed, OutcomeAccountLocked,
		OutcomeSystemError, OutcomeCancelled:
		return true
	}
	return false
}

// RejectedOutcomes is the explicit rejected bucket used by access statistics.
var RejectedOutcomes = []AccessOutcome{
	OutcomeRejected, OutcomeNotAuthorized, OutcomeBiometricFailure,
	OutcomePlateFailure, OutcomeCodeExpired, OutcomeCodeInvalid,
	OutcomeCodeUsed, OutcomeAccountLocked,
}

// PendingOutcomes is the pending bucket: attempts that never reached a
// real decision.
var PendingOutcomes = []AccessOutcome{
	OutcomeSystemError, OutcomeCancelled,
}

// PhoneOutcome enumerates how a phone authorization callback ended.
type PhoneOutcome string

const (
	PhoneAccepted        PhoneOutcome = "accepted"
	PhoneRejected        PhoneOutcome = "rejected"
	PhoneNoAnswer        PhoneOutcome = "no_answer"
	PhoneInvalidNumber   PhoneOutcome = "invalid_number"
	PhoneProviderFailure PhoneOutcome = "provider_failure"
)

// Valid reports whether p is a recognised phone callback outcome.
func (p PhoneOutcome) Valid() bool {
	switch p {
	case PhoneAccepted, PhoneRejected, PhoneNoAnswer,
		PhoneInvalidNumber, PhoneProviderFailure:
		return true
	}
	return false
}

// OccupantRole is how an account's person is attached to a housing unit.
type OccupantRole string

const (
	RoleResident     OccupantRole = "resident"
	RoleFamilyMember OccupantRole = "family_member"
)
