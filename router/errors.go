package router

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/wfunc/picword/room"
)

// Error is what transports render. Code is stable across releases.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

const (
	CodeOK             = "ok"
	CodeInvalidRequest = "invalid_request"
	CodeInternal       = "internal"
)

var sentinels = []struct {
	err    error
	code   string
	status int
}{
	{room.ErrRoomNotFound, "room_not_found", http.StatusNotFound},
	{room.ErrPlayerNotInRoom, "player_not_in_room", http.StatusNotFound},
	{room.ErrRoomFull, "room_full", http.StatusConflict},
	{room.ErrNameTaken, "name_taken", http.StatusConflict},
	{room.ErrAlreadyStarted, "already_started", http.StatusConflict},
	{room.ErrNotStarted, "not_started", http.StatusConflict},
	{room.ErrNotEnoughPlayers, "not_enough_players", http.StatusConflict},
	{room.ErrRoundNotClosed, "round_not_closed", http.StatusConflict},
	{room.ErrGameNotFinished, "game_not_finished", http.StatusConflict},
	{room.ErrRoomClosed, "room_closed", http.StatusConflict},
	{room.ErrNotHost, "not_host", http.StatusForbidden},
	{room.ErrInvalidName, "invalid_name", http.StatusBadRequest},
	{room.ErrInvalidCapacity, "invalid_capacity", http.StatusBadRequest},
	{room.ErrNoRoundsAvailable, "no_rounds_available", http.StatusUnprocessableEntity},
	{room.ErrIDExhausted, "id_exhausted", http.StatusServiceUnavailable},
}

// Classify maps any error returned by the router onto an *Error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return &Error{Code: CodeInvalidRequest, Message: describe(verrs), Status: http.StatusBadRequest}
	}

	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return &Error{Code: s.code, Message: err.Error(), Status: s.status}
		}
	}
	return &Error{Code: CodeInternal, Message: err.Error(), Status: http.StatusInternalServerError}
}

// Code returns the stable code for err, CodeOK for nil.
func Code(err error) string {
	if err == nil {
		return CodeOK
	}
	return Classify(err).Code
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// BadRequest builds an invalid_request error for decoding failures.
func BadRequest(format string, args ...interface{}) *Error {
	return &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf(format, args...), Status: http.StatusBadRequest}
}
