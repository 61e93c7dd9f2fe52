package server

import (
	"database/sql"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

// InvalidDocumentMessage is the error reported for a document that does not
// match its model definition.
const InvalidDocumentMessage = "Invalid JSON: does not match the model definition"

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// notFoundError indicates a missing model or document.
// Transport layers map this to 404 / NotFound.
type notFoundError string

func (e notFoundError) Error() string { return string(e) }

// conflictError indicates that a model or document already exists.
// Transport layers map this to 409 / AlreadyExists.
type conflictError string

func (e conflictError) Error() string { return string(e) }

// invalidDocumentError carries the validator's verdict for a rejected
// document. Transport layers map it to 400 / InvalidArgument and include the
// log.
type invalidDocumentError struct {
	Result model.ValidationResult
}

func (e *invalidDocumentError) Error() string { return InvalidDocumentMessage }

// httpStatus maps a service error to an HTTP status code.
func httpStatus(err error) int {
	var (
		ie  inputError
		nfe notFoundError
		ce  conflictError
		ide *invalidDocumentError
	)
	switch {
	case errors.As(err, &ie), errors.As(err, &ide):
		return http.StatusBadRequest
	case errors.As(err, &nfe), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound
	case errors.As(err, &ce), errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// grpcCode maps a service error to a gRPC status code.
func grpcCode(err error) codes.Code {
	switch httpStatus(err) {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	}
	return codes.Internal
}
