package service

import (
	"fmt"

	"go-retail-ledger/pkg/apperror"
	"go-retail-ledger/pkg/database"
	"go-retail-ledger/pkg/validator"
)

var (
	ErrCashSessionNotFound      = apperror.NotFound("CASH_SESSION_NOT_FOUND", "cash session not found")
	ErrCashSessionClosed        = apperror.Conflict("CASH_SESSION_CLOSED", "cash session is closed")
	ErrCashSessionNotOwned      = apperror.Forbidden("CASH_SESSION_NOT_OWNED", "cash session belongs to another user")
	ErrCashSessionAlreadyClosed = apperror.Conflict("CASH_SESSION_ALREADY_CLOSED", "cash session is already closed")
	ErrMaxOpenCashSessions      = apperror.Conflict("MAX_OPEN_CASH_SESSIONS", "maximum number of open cash sessions reached")
	ErrRegisterLabelInUse       = apperror.Conflict("REGISTER_LABEL_IN_USE", "register label is used by another open session")
	ErrTenantInactive           = apperror.Forbidden("TENANT_INACTIVE", "tenant is inactive")
	ErrTenantNotFound           = apperror.NotFound("TENANT_NOT_FOUND", "tenant not found")
	ErrSaleNotFound             = apperror.NotFound("SALE_NOT_FOUND", "sale not found")
	ErrProductNotFound          = apperror.NotFound("PRODUCT_NOT_FOUND", "product not found")
	ErrLocationNotFound         = apperror.NotFound("LOCATION_NOT_FOUND", "stock location not found")
	ErrUserNotFound             = apperror.NotFound("USER_NOT_FOUND", "user not found")
	ErrNoInventoryForProduct    = apperror.NotFound("NO_INVENTORY_FOR_PRODUCT", "no inventory row can serve this product")
	ErrCredentialRequired       = apperror.Forbidden("SUPERVISOR_CREDENTIAL_REQUIRED", "supervisor credential is required")
	ErrApprovalFailed           = apperror.Forbidden("SUPERVISOR_APPROVAL_FAILED", "supervisor approval failed")
	ErrRoleForbidden            = apperror.Forbidden("ROLE_FORBIDDEN", "role is not allowed to perform this action")
)

// validationError turns validator output into a domain validation error
func validationError(errs []*validator.ErrorResponse) error {
	first := errs[0]
	details := make(map[string]interface{}, len(errs))
	for _, e := range errs {
		details[e.FailedField] = e.Tag
	}
	return apperror.Validation("INVALID_INPUT",
		fmt.Sprintf("Validation failed: Field '%s' failed on tag '%s'", first.FailedField, first.Tag)).
		WithDetails(details)
}

func invalid(code, format string, args ...interface{}) error {
	return apperror.Validation(code, fmt.Sprintf(format, args...))
}

// persistenceError maps storage failures that are not domain errors
func persistenceError(op string, err error) error {
	if _, ok := apperror.As(err); ok {
		return err
	}
	if database.IsUniqueViolation(err) {
		return apperror.Conflict("DUPLICATE", op+": record already exists").Wrap(err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
