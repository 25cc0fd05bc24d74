package errors

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   ErrorCode         `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

// NewErrorResponse builds the public body for err. Internal causes never
// leave the process.
func NewErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Error: PublicMessage(err),
		Code:  GetCode(err),
	}
	for field, msg := range GetDetails(err) {
		if s, ok := msg.(string); ok {
			if resp.Fields == nil {
				resp.Fields = make(map[string]string)
			}
			resp.Fields[field] = s
		}
	}
	return resp
}

// RenderError writes err with the status its code maps to.
func RenderError(w http.ResponseWriter, r *http.Request, err error) {
	code := GetCode(err)
	if code == ErrCodeInternal {
		slog.Error("Request failed", "path", r.URL.Path, "err", err)
	}
	render.Status(r, MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, NewErrorResponse(err))
}

// FromValidation turns validator failures into a VALIDATION_FAILED error.
// fields maps struct field names to the names clients see.
func FromValidation(err error, fields map[string]string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return Wrap(err, ErrCodeValidationFailed, "Invalid request")
	}
	out := New(ErrCodeValidationFailed, "Invalid request")
	for _, fe := range verrs {
		name := fe.StructField()
		if mapped, ok := fields[name]; ok {
			name = mapped
		}
		out.WithDetail(name, validationMessage(fe))
	}
	if len(verrs) == 1 {
		out.Message = validationMessage(verrs[0])
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "The " + fe.StructField() + " field is required."
	case "e164":
		return "The " + fe.StructField() + " field is not a valid phone number."
	case "min", "max", "len":
		return "The " + fe.StructField() + " field has an invalid length."
	}
	return "The " + fe.StructField() + " field is invalid."
}
