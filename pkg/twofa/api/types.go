package api

import "github.com/tendant/simple-idp/pkg/twofa"

type PhoneNumberRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
}

type ConfirmPhoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,e164"`
	Code        string `json:"code" validate:"required"`
}

type CodeRequest struct {
	Code string `json:"code" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
	Ack     string `json:"ack,omitempty"`
}

type ProfileResponse struct {
	UserName             string `json:"user_name"`
	Email                string `json:"email"`
	EmailConfirmed       bool   `json:"email_confirmed"`
	PhoneNumber          string `json:"phone_number"`
	PhoneNumberConfirmed bool   `json:"phone_number_confirmed"`
}

type TwoFactorStatusResponse = twofa.Status

type AuthenticatorResponse struct {
	SharedKey        string `json:"shared_key"`
	AuthenticatorURI string `json:"authenticator_uri"`
	QRCodePNG        []byte `json:"qr_code_png"`
}

// fieldNames maps request fields to the names used in error details.
var fieldNames = map[string]string{
	"PhoneNumber": twofa.PhoneNumberField,
	"Code":        twofa.CodeField,
}
