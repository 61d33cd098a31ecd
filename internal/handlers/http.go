package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/abrezinsky/electionvote/internal/errors"
	"github.com/abrezinsky/electionvote/internal/logger"
)

// Error codes for standardized API error responses
const (
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
	ErrCodeAlreadyVoted   = "ALREADY_VOTED"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// APIError represents an error with an HTTP status code and error code
type APIError struct {
	Status  int    `json:"-"`
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error with custom message and code
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message, Err: message}
}

// BadRequest creates a 400 error with custom message
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrCodeBadRequest, message)
}

// Unauthorized creates a 401 error with custom message
func Unauthorized(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// NotFound creates a 404 error with custom message
func NotFound(message string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrCodeNotFound, message)
}

// internalError is the body of every 500; the cause is only logged
var internalError = NewAPIError(http.StatusInternalServerError, ErrCodeInternalServer, "Internal server error")

// ToAPIError converts service errors to appropriate API errors. Storage
// failures never leak into the body.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr
	}

	var appErr *errors.Error
	if !stderrors.As(err, &appErr) {
		return internalError
	}

	switch appErr.Kind {
	case errors.ErrNotFound:
		return NotFound(appErr.Message)
	case errors.ErrValidation, errors.ErrInvalidInput:
		return NewAPIError(http.StatusBadRequest, ErrCodeValidation, appErr.Message)
	case errors.ErrDuplicate:
		return NewAPIError(http.StatusBadRequest, ErrCodeAlreadyVoted, appErr.Message)
	case errors.ErrForbidden:
		code := ErrCodeForbidden
		if appErr.Code != "" {
			code = appErr.Code
		}
		return NewAPIError(http.StatusForbidden, code, appErr.Message)
	case errors.ErrConflict:
		return NewAPIError(http.StatusConflict, ErrCodeConflict, appErr.Message)
	default:
		return internalError
	}
}

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// envelope is the success body
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respondOK writes a 200 OK success envelope
func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// respondCreated writes a 201 Created success envelope
func respondCreated(w http.ResponseWriter, message string, data interface{}) {
	respondJSON(w, http.StatusCreated, envelope{Success: true, Message: message, Data: data})
}

// respondMessage writes a 200 OK with a message and data
func respondMessage(w http.ResponseWriter, message string, data interface{}) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Message: message, Data: data})
}

// respondPNG writes an uncached PNG image
func respondPNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(png)
}

// respondError writes an error response, logging anything that maps to 500
func respondError(w http.ResponseWriter, log logger.Logger, r *http.Request, err error) {
	apiErr := ToAPIError(err)
	if apiErr.Status >= http.StatusInternalServerError && log != nil {
		log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	respondJSON(w, apiErr.Status, apiErr)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON decodes JSON from request body into the target. An empty body
// leaves the target untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if err == io.EOF {
			if allowEmpty {
				return nil
			}
			return BadRequest("Request body is empty")
		}
		return NewAPIError(http.StatusBadRequest, ErrCodeValidation, "Invalid JSON: "+err.Error())
	}
	return nil
}

// decodeAndValidate decodes the body and applies its validate tags
func decodeAndValidate(w http.ResponseWriter, r *http.Request, target interface{}) error {
	if err := decodeJSON(w, r, target, false); err != nil {
		return err
	}
	return validateStruct(target)
}

func validateStruct(target interface{}) error {
	err := validate.Struct(target)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) && len(verrs) > 0 {
		return NewAPIError(http.StatusBadRequest, ErrCodeValidation, validationMessage(verrs[0]))
	}
	return NewAPIError(http.StatusBadRequest, ErrCodeValidation, err.Error())
}

func validationMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must have at least " + fe.Param() + " entries"
	case "max":
		return field + " is too long"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "url":
		return field + " must be a valid URL"
	default:
		return field + " is invalid"
	}
}

// queryInt parses a non-negative integer query parameter, 0 when absent
func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, NewAPIError(http.StatusBadRequest, ErrCodeValidation, "Invalid "+name+" parameter")
	}
	return n, nil
}

// queryBool parses an optional boolean query parameter
func queryBool(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, NewAPIError(http.StatusBadRequest, ErrCodeValidation, "Invalid "+name+" parameter")
	}
	return &b, nil
}

// idParam returns a path parameter
func idParam(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}
