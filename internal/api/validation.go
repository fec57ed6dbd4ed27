package api

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"moviemeter-go/internal/store"

	"github.com/go-playground/validator/v10"
)

var walletAddressRegex = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

// NormalizeAddress lowercases and trims a wallet address so one wallet maps to one user key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsWalletAddress reports whether address is a normalized 0x-prefixed EVM address.
func IsWalletAddress(address string) bool {
	return walletAddressRegex.MatchString(address)
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("wallet_address", validateWalletAddress)
	return v
}

func validateWalletAddress(fl validator.FieldLevel) bool {
	return IsWalletAddress(fl.Field().String())
}

// validateRequest runs struct validation and folds failures into store.ErrValidation.
func (s *Service) validateRequest(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			msgs := make([]string, 0, len(fieldErrors))
			for _, fe := range fieldErrors {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", store.ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "wallet_address":
		return fmt.Sprintf("%s must be a 0x-prefixed 40 hex character address", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	}
	return fmt.Sprintf("%s is invalid", field)
}

func validateAddress(address string) error {
	if !IsWalletAddress(address) {
		return fmt.Errorf("%w: address must be a 0x-prefixed 40 hex character address", store.ErrValidation)
	}
	return nil
}
