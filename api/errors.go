package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/msigvault/msig/directory"
)

var (
	// ErrBadRequest is returned when the provided HTTP request
	// is malformed.
	ErrBadRequest = errors.New("invalid request parameters")
	// ErrNotFound is returned when the wallet has no directory rows.
	ErrNotFound = errors.New(directory.MsgMemberNotFound)
)

// ErrStorageError wraps a failure of the directory store. Its details are
// logged, never returned to the client.
type ErrStorageError struct{ Err error }

func (e ErrStorageError) Error() string {
	if e.Err != nil {
		return "storage error: " + e.Err.Error()
	}
	// ErrStorageError shouldn't be constructed with a nil Err, but format it just in case.
	return "storage error: internal bug, incorrectly instantiated error object with nil"
}

func (e ErrStorageError) Unwrap() error {
	return e.Err
}

type badRequestError struct{ msg string }

func (e badRequestError) Error() string { return e.msg }

func (e badRequestError) Is(target error) bool { return target == ErrBadRequest }

func badRequest(msg string) error {
	return badRequestError{msg: msg}
}

func HttpCodeForError(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage is the text shown to clients for err.
func publicMessage(err error) string {
	if HttpCodeForError(err) == http.StatusInternalServerError {
		return directory.MsgDatabaseError
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("x-content-type-options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// JsonErrorHandler renders err as {"error": ...} to w.
func JsonErrorHandler(w http.ResponseWriter, err error) {
	writeJSON(w, HttpCodeForError(err), directory.ErrorResponse{Error: publicMessage(err)})
}
