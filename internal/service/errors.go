package service

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")

	ErrNoCardsAvailable = errors.New("no cards available")
	ErrAirdropInactive  = errors.New("airdrop is not active")
	ErrAlreadyClaimed   = errors.New("card from this airdrop already claimed")
	ErrClaimContention  = errors.New("airdrop claim contention")

	ErrLinkInactive = errors.New("link is not active")
	ErrSelfPurchase = errors.New("card already belongs to buyer")

	// ErrStorageFailure hides the cause of an unexpected database failure.
	// The cause itself is logged.
	ErrStorageFailure = errors.New("storage failure")
)

// outcomes are returned to callers as is. Anything else coming out of the
// repository is reported as ErrStorageFailure.
var outcomes = []error{
	ErrNotFound, ErrValidation, ErrConflict,
	ErrNoCardsAvailable, ErrAirdropInactive, ErrAlreadyClaimed, ErrClaimContention,
	ErrLinkInactive, ErrSelfPurchase,
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func notFound(entity string, id interface{}) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

func isOutcome(err error) bool {
	for _, target := range outcomes {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// fail passes outcomes through and turns everything else into a generic
// storage failure after logging it.
func (s *Service) fail(op string, err error) error {
	if isOutcome(err) {
		return err
	}
	s.logger.Errorf("✖ %s: %v", op, err)
	return fmt.Errorf("%s: %w", op, ErrStorageFailure)
}

func fromValidator(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return invalid(fe.Field(), reasonFor(fe))
	}

	var invalidErr *validator.InvalidValidationError
	if errors.As(err, &invalidErr) {
		return invalid("input", invalidErr.Error())
	}
	return invalid("input", err.Error())
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gt", "gte", "lt", "lte", "min", "max":
		return fmt.Sprintf("violates %s=%s", fe.Tag(), fe.Param())
	default:
		return "failed " + fe.Tag()
	}
}
