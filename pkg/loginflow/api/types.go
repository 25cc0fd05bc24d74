package api

import (
	idperrors "github.com/tendant/simple-idp/pkg/errors"
	"github.com/tendant/simple-idp/pkg/loginflow"
)

type LoginRequest struct {
	UserName   string `json:"user_name" validate:"required"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
	ReturnURL  string `json:"return_url"`
}

type LoginResponse struct {
	Succeeded         bool   `json:"succeeded"`
	RequiresTwoFactor bool   `json:"requires_two_factor"`
	LockedOut         bool   `json:"locked_out"`
	RedirectURL       string `json:"redirect_url,omitempty"`
}

// GateResponse carries the gate outcome, plus the error that kept the user
// on the page.
type GateResponse struct {
	loginflow.Outcome
	Error *idperrors.ErrorResponse `json:"error,omitempty"`
}

var fieldNames = map[string]string{
	"UserName": "Input.UserName",
	"Password": "Input.Password",
}
