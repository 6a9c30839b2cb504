package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Validation errors
	CodeInvalidRequest    Code = "INVALID_REQUEST"
	CodeInvalidQuantity   Code = "INVALID_QUANTITY"
	CodeInvalidMode       Code = "INVALID_GARRISON_MODE"
	CodeInvalidTollAmount Code = "INVALID_TOLL_AMOUNT"

	// Garrison transaction errors
	CodeShipNotFound          Code = "SHIP_NOT_FOUND"
	CodeGarrisonNotFound      Code = "GARRISON_NOT_FOUND"
	CodeGarrisonOwnerConflict Code = "GARRISON_OWNER_CONFLICT"
	CodeInsufficientFighters  Code = "INSUFFICIENT_FIGHTERS"

	// Combat errors
	CodeCombatNotFound  Code = "COMBAT_NOT_FOUND"
	CodeCombatActive    Code = "COMBAT_ACTIVE"
	CodeCombatMalformed Code = "COMBAT_MALFORMED"

	// Storage errors
	CodeNotFound       Code = "NOT_FOUND"
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidRequest, CodeInvalidQuantity, CodeInvalidMode, CodeInvalidTollAmount:
		return codes.InvalidArgument
	case CodeShipNotFound, CodeGarrisonNotFound, CodeCombatNotFound, CodeNotFound:
		return codes.NotFound
	case CodeGarrisonOwnerConflict, CodeCombatActive:
		return codes.AlreadyExists
	case CodeInsufficientFighters:
		return codes.FailedPrecondition
	case CodeCombatMalformed:
		return codes.DataLoss
	case CodeStorageFailure:
		return codes.Internal
	default:
		return codes.Internal
	}
}

// HTTPStatus maps domain codes to HTTP status codes for the JSON API surface.
//
// Owner conflicts are 409 so clients can distinguish "someone else holds this
// sector" from plain validation failures.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest, CodeInvalidQuantity, CodeInvalidMode, CodeInvalidTollAmount, CodeInsufficientFighters:
		return http.StatusBadRequest
	case CodeShipNotFound, CodeGarrisonNotFound, CodeCombatNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeGarrisonOwnerConflict, CodeCombatActive:
		return http.StatusConflict
	case CodeCombatMalformed, CodeStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
