package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
	Code    string            `json:"code,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, code int, data any, message string) {
	writeJSON(w, code, Response{Success: true, Data: data, Message: message})
}

// writeError maps the error taxonomy onto status codes. Unknown errors are
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, resp := classify(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, Response) {
	var (
		ve  *apperr.ErrValidation
		nf  *apperr.ErrNotFound
		br  *apperr.ErrBusinessRule
		ins *apperr.ErrInsufficientStock
		ist *apperr.ErrInvalidStateTransition
		gd  *apperr.ErrGatewayDeclined
		cf  *apperr.ErrConflict
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, Response{Error: ve.Error(), Code: apperr.CodeValidation, Fields: ve.Fields}
	case errors.As(err, &nf):
		return http.StatusNotFound, Response{Error: nf.Error(), Code: apperr.CodeNotFound}
	case errors.As(err, &ins):
		return http.StatusBadRequest, Response{Error: ins.Error(), Code: apperr.CodeInsufficientStock}
	case errors.As(err, &ist):
		return http.StatusBadRequest, Response{Error: ist.Error(), Code: apperr.CodeInvalidStateTransition}
	case errors.As(err, &gd):
		return http.StatusBadRequest, Response{Error: gd.Error(), Code: apperr.CodeGatewayDeclined}
	case errors.As(err, &cf):
		return http.StatusConflict, Response{Error: cf.Error(), Code: apperr.CodeConflict}
	case errors.As(err, &br):
		return http.StatusBadRequest, Response{Error: br.Error(), Code: br.Code}
	default:
		return http.StatusInternalServerError, Response{Error: "internal server error", Code: apperr.CodeInternal}
	}
}

const maxBody = 1 << 20

// decodeJSON reads a JSON body into v. An empty body is allowed when
// optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Validation("invalid json: %s", jsonProblem(err))
	}
	return nil
}

func jsonProblem(err error) string {
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	switch {
	case errors.As(err, &se):
		return fmt.Sprintf("syntax error at offset %d", se.Offset)
	case errors.As(err, &te):
		return fmt.Sprintf("field %s must be %s", te.Field, te.Type)
	case errors.Is(err, io.EOF):
		return "empty body"
	default:
		return err.Error()
	}
}

// actor identifies the caller for audit fields. Authentication happens in
// front of this service.
func actor(r *http.Request, fallback string) string {
	if id := r.Header.Get("X-User-Id"); id != "" {
		return id
	}
	return fallback
}
