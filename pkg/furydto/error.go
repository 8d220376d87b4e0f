package furydto

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind is the failure taxonomy surfaced to callers.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindPrecondition ErrorKind = "precondition"
	KindTransient    ErrorKind = "transient"
	KindInternal     ErrorKind = "internal"
)

// DomainError carries a machine-readable code alongside the user-facing message.
// Two DomainErrors match under errors.Is when their codes are equal.
type DomainError struct {
	Kind        ErrorKind
	Code        string
	Message     string
	Retryable   bool
	RemainingMs int64
	Cause       error
}

func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code
	}
	if msg == "" {
		msg = "game service error"
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *DomainError) Unwrap() error { return e.Cause }

func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

func newErr(kind ErrorKind, code, msg string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: msg, Retryable: kind == KindTransient}
}

var (
	ErrInvalidArgs           = newErr(KindValidation, "invalid_argument", "invalid arguments")
	ErrSelfAttack            = newErr(KindValidation, "self_attack", "cannot attack yourself")
	ErrInvalidName           = newErr(KindValidation, "invalid_name", "alliance name must be 3-20 characters")
	ErrInvalidTag            = newErr(KindValidation, "invalid_tag", "alliance tag must be 2-5 characters")
	ErrDescriptionTooLong    = newErr(KindValidation, "description_too_long", "description must be at most 500 characters")
	ErrInvalidRecipient      = newErr(KindValidation, "invalid_recipient", "invalid gift recipient")
	ErrMessageTooLong        = newErr(KindValidation, "message_too_long", "gift message must be at most 100 characters")
	ErrEmptyGift             = newErr(KindValidation, "empty_gift", "nothing to send")
	ErrInvalidShieldDuration = newErr(KindValidation, "invalid_shield_duration", "unsupported shield duration")

	ErrAccountNotFound  = newErr(KindNotFound, "account_not_found", "account not found")
	ErrTargetNotFound   = newErr(KindNotFound, "target_not_found", "target not found")
	ErrAllianceNotFound = newErr(KindNotFound, "alliance_not_found", "alliance not found")
	ErrGiftNotFound     = newErr(KindNotFound, "gift_not_found", "gift not found or expired")

	ErrAlreadyAffiliated = newErr(KindConflict, "already_affiliated", "already in an alliance")
	ErrNameTaken         = newErr(KindConflict, "name_taken", "alliance name or tag taken")

	ErrTargetShielded             = newErr(KindPrecondition, "target_shielded", "target is shielded")
	ErrCooldownActive             = newErr(KindPrecondition, "cooldown_active", "cooldown active")
	ErrInsufficientResources      = newErr(KindPrecondition, "insufficient_resources", "insufficient resources")
	ErrAllianceFull               = newErr(KindPrecondition, "alliance_full", "alliance full")
	ErrAlliancePrivate            = newErr(KindPrecondition, "alliance_private", "alliance is private")
	ErrLevelTooLow                = newErr(KindPrecondition, "level_too_low", "level below alliance minimum")
	ErrLeadershipTransferRequired = newErr(KindPrecondition, "leadership_transfer_required", "transfer leadership first")
	ErrNotAffiliated              = newErr(KindPrecondition, "not_affiliated", "not in an alliance")
	ErrNotSameAlliance            = newErr(KindPrecondition, "not_same_alliance", "recipient must be in your alliance")
	ErrNotLeader                  = newErr(KindPrecondition, "not_leader", "only the alliance leader can do that")
	ErrNotMember                  = newErr(KindPrecondition, "not_member", "account is not a member of this alliance")

	ErrStoreContention = newErr(KindTransient, "store_contention", "concurrent update detected, retry")
	ErrStoreTimeout    = newErr(KindTransient, "store_timeout", "storage timeout, retry")
)

// CooldownActive reports the attack cooldown together with the time left.
func CooldownActive(remaining time.Duration) error {
	e := *ErrCooldownActive
	e.RemainingMs = remaining.Milliseconds()
	if e.RemainingMs < 1 {
		e.RemainingMs = 1
	}
	return &e
}

// LevelTooLow carries the alliance's minimum level in the message.
func LevelTooLow(minLevel int) error {
	e := *ErrLevelTooLow
	e.Message = fmt.Sprintf("min level %d required", minLevel)
	return &e
}

// InsufficientGems names the missing amount.
func InsufficientGems(cost int64) error {
	e := *ErrInsufficientResources
	e.Message = fmt.Sprintf("need %d gems", cost)
	return &e
}

// Transient wraps an infrastructure failure as a retryable error.
func Transient(base *DomainError, cause error) error {
	e := *base
	e.Cause = cause
	e.Retryable = true
	return &e
}

// AsDomain extracts the DomainError from err's chain.
func AsDomain(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) && de != nil {
		return de, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err; unknown errors are internal.
func KindOf(err error) ErrorKind {
	if de, ok := AsDomain(err); ok {
		return de.Kind
	}
	return KindInternal
}
