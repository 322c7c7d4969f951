package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"playbox/internal/analytics"
	"playbox/internal/core"
)

const maxBodyBytes = 64 << 10

type (
	loginRequest struct {
		Username string `json:"username" validate:"required,max=64"`
		Password string `json:"password" validate:"required,max=128"`
	}

	scanRequest struct {
		CardUID string `json:"cardUid" validate:"required,max=64"`
	}

	createUserRequest struct {
		CardUID string `json:"cardUid" validate:"required,max=64"`
		Name    string `json:"name" validate:"required,max=100"`
		Phone   string `json:"phone" validate:"required,max=20"`
		Email   string `json:"email" validate:"omitempty,email,max=254"`
	}

	// Amounts arrive as typed by the operator, e.g. "1,500" or 500.
	addRequest struct {
		CardUID string      `json:"cardUid" validate:"required,max=64"`
		Amount  amountInput `json:"amount" validate:"required"`
	}

	deductRequest struct {
		CardUID     string      `json:"cardUid" validate:"required,max=64"`
		Amount      amountInput `json:"amount" validate:"required"`
		Deductor    string      `json:"deductor" validate:"max=64"`
		Description string      `json:"description" validate:"required,max=200"`
	}

	filterRequest struct {
		StartDate   string `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
		EndDate     string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
		Type        string `json:"type" validate:"omitempty,oneof=ADD DEDUCT NEW_USER add deduct new_user"`
		UserID      *int64 `json:"userId" validate:"omitempty,gte=0"`
		AdminName   string `json:"adminName" validate:"max=64"`
		SearchQuery string `json:"searchQuery" validate:"max=100"`
	}
)

// amountInput accepts a bare JSON number or a quoted string like "1,500".
type amountInput string

func (a *amountInput) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountInput(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount must be a number or a string: %w", err)
	}
	*a = amountInput(n.String())
	return nil
}

// validationError carries per-field messages back to the client.
type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.fields))
	for f, msg := range e.fields {
		parts = append(parts, f+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: v}
}

func (v *requestValidator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			fields[e.Field()] = "This field is required"
		case "email":
			fields[e.Field()] = "Invalid email address"
		case "max":
			fields[e.Field()] = fmt.Sprintf("Must be at most %s characters", e.Param())
		case "datetime":
			fields[e.Field()] = "Use the YYYY-MM-DD format"
		case "oneof":
			fields[e.Field()] = "Must be one of " + e.Param()
		default:
			fields[e.Field()] = fmt.Sprintf("failed validation on '%s'", e.Tag())
		}
	}
	return &validationError{fields: fields}
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		msg := "Invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is empty"
		}
		writeMessage(w, http.StatusBadRequest, msg)
		return false
	}
	if err := s.validator.Struct(dst); err != nil {
		var verr *validationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorBody{
				Error:  verr.Error(),
				Status: core.Failure("Please check the highlighted fields"),
				Fields: verr.fields,
			})
			return false
		}
		writeError(w, r, err)
		return false
	}
	return true
}

func (f filterRequest) criteria() analytics.Criteria {
	c := analytics.Criteria{
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		UserID:      f.UserID,
		AdminName:   sanitizeInput(f.AdminName),
		SearchQuery: sanitizeInput(f.SearchQuery),
	}
	if t, ok := core.ParseTransactionType(f.Type); ok {
		c.Type = &t
	}
	return c
}

// queryInt reads a positive integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// sanitizeInput removes control characters except tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
