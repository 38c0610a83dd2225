package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-hotel-booking/internal/booking"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func statusFor(code string) int {
	switch code {
	case booking.CodeNotFound:
		return http.StatusNotFound
	case booking.CodeInvalidRange, booking.CodeInvalidInput:
		return http.StatusBadRequest
	case booking.CodeUnauthenticated:
		return http.StatusUnauthorized
	case booking.CodeForbidden:
		return http.StatusForbidden
	case booking.CodeRoomUnavailable, booking.CodeInvalidTransition:
		return http.StatusConflict
	case booking.CodeSessionCreationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors to {success:false, message, code}. Internal
// details of transitions, provider failures and unknown errors stay in the log.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	code := booking.Code(err)
	msg := err.Error()
	entry := log.WithError(err).WithFields(logrus.Fields{"path": r.URL.Path, "code": code})
	switch code {
	case booking.CodeInvalidTransition:
		entry.Warn("reservation state divergence")
		msg = "This booking can no longer be changed. Please refresh and try again."
	case booking.CodeSessionCreationFailed:
		msg = "Failed to create checkout session"
	case booking.CodeInternal:
		entry.Error("request failed")
		msg = "Internal server error"
	}
	writeJSON(w, statusFor(code), errorBody{Success: false, Message: msg, Code: code})
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json", booking.ErrInvalidInput)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" ("+fe.Tag()+")")
			}
			return fmt.Errorf("%w: %s", booking.ErrInvalidInput, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", booking.ErrInvalidInput, err)
	}
	return nil
}

func requireUser(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger) (string, bool) {
	id := userID(r)
	if id == "" {
		writeError(w, r, log, booking.ErrUnauthenticated)
		return "", false
	}
	return id, true
}
