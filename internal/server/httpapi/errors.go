package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/berboapp/internal/common"
)

const (
	msgInternal       = "An Error occurred, please try again later!"
	msgLoginAgain     = "You need to login again!"
	msgRefreshInvalid = "Refresh Token not valid"
)

// errorMessages holds the user-facing text for each domain error.
var errorMessages = []struct {
	err  error
	msg  string
	code int
}{
	{common.ErrBadCredentials, "Your username or password are incorrect, please try again!", http.StatusBadRequest},
	{common.ErrAccountDisabled, "Account disabled! Contact berbo997@gmail.com or Confirm your account!", http.StatusBadRequest},
	{common.ErrAccountLocked, "Account locked! Contact berbo997@gmail.com!", http.StatusBadRequest},
	{common.ErrEmailExists, "Email already Exists! Choose another one!", http.StatusBadRequest},
	{common.ErrEmailNotFound, "Email does not exist!", http.StatusBadRequest},
	{common.ErrEmailDeliveryFailed, "Can't send email, please try again!", http.StatusBadRequest},
	{common.ErrCodeExpired, "Two factor authentication code is expired, please login again!", http.StatusBadRequest},
	{common.ErrCodeInvalid, "Code is invalid, please try again!", http.StatusBadRequest},
	{common.ErrCodeNotFound, "Code not found, please login again!", http.StatusBadRequest},
	{common.ErrResetLinkExpired, "Password recovery code is expired, please reset password again!", http.StatusBadRequest},
	{common.ErrResetLinkNotFound, "This link is not valid, please reset password again!", http.StatusBadRequest},
	{common.ErrLinkExpired, "This link has expired, please register again!", http.StatusBadRequest},
	{common.ErrLinkNotFound, "This link is not valid!", http.StatusBadRequest},
	{common.ErrPasswordMismatch, "Passwords don't match, please try again!", http.StatusBadRequest},
	{common.ErrIncorrectCurrentPassword, "Current password is incorrect, please try again!", http.StatusBadRequest},
	{common.ErrValidation, "Invalid input, please check the form and try again!", http.StatusBadRequest},
	{common.ErrRoleNotFound, "Role not found!", http.StatusBadRequest},
	{common.ErrPhoneRequired, "You need a phone number to change Multi-Factor Authentication", http.StatusBadRequest},
	{common.ErrRefreshTokenInvalid, msgRefreshInvalid, http.StatusBadRequest},
	{common.ErrTokenExpired, msgLoginAgain, http.StatusUnauthorized},
	{common.ErrTokenInvalidSignature, "Token not valid!", http.StatusUnauthorized},
	{common.ErrTokenInvalidClaim, "Token not valid!", http.StatusUnauthorized},
	{common.ErrorUnauthorized, "You need to login to access this page!!!", http.StatusUnauthorized},
	{common.ErrorForbidden, "You do not have enough permissions to view this page!!!", http.StatusForbidden},
	{common.ErrImageNotFound, "Image not found!", http.StatusNotFound},
	{common.ErrorNotFound, "Not found!", http.StatusNotFound},
}

// statusFor maps err to its HTTP status and public message. Unknown errors
// become a generic 500.
func statusFor(err error) (int, string) {
	for _, m := range errorMessages {
		if errors.Is(err, m.err) {
			return m.code, m.msg
		}
	}
	return http.StatusInternalServerError, msgInternal
}
