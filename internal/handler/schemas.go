package handler

import "github.com/sakif/health-companion/internal/validation"

// Request schemas. The server attaches each one to its route through
// middleware.Validate; handlers then read the sanitized values with
// validation.FromContext.
var (
	RegisterSchema = validation.Schema{
		"email": {validation.Required("email"), validation.Email("email")},
		"password": {
			validation.Required("password"),
			validation.MinLength("password", validation.MinPasswordLength),
			validation.PasswordStrength("password"),
		},
		"name": {validation.Required("name")},
	}

	LoginSchema = validation.Schema{
		"email":    {validation.Required("email"), validation.Email("email")},
		"password": {validation.Required("password")},
	}

	ChangePasswordSchema = validation.Schema{
		"currentPassword": {validation.Required("currentPassword")},
		"newPassword": {
			validation.Required("newPassword"),
			validation.MinLength("newPassword", validation.MinPasswordLength),
			validation.PasswordStrength("newPassword"),
		},
	}

	SaveItemSchema = validation.Schema{
		"itemId": {validation.Required("itemId"), validation.MinLength("itemId", 1)},
	}
)
