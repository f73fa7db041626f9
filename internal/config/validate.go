package config

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nao1215/linkmark/internal/model"
)

// validate checks model.Options struct tags. The "excludedomain" tag is
// registered here because it needs the www. stripping used by the classifier.
var validate = newValidator()

// hostValidator runs the built-in hostname rule for isExcludeDomain.
var hostValidator = validator.New()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("excludedomain", isExcludeDomain); err != nil {
		panic(fmt.Sprintf("failed to register excludedomain validation: %v", err))
	}
	if err := v.RegisterValidation("pathglob", isPathGlob); err != nil {
		panic(fmt.Sprintf("failed to register pathglob validation: %v", err))
	}
	return v
}

// isPathGlob accepts non-empty patterns that path.Match can parse.
func isPathGlob(fl validator.FieldLevel) bool {
	pattern := strings.TrimSpace(fl.Field().String())
	if pattern == "" {
		return false
	}
	_, err := path.Match(pattern, "")
	return err == nil
}

func isExcludeDomain(fl validator.FieldLevel) bool {
	domain := model.NormalizeHost(strings.TrimSpace(fl.Field().String()))
	if domain == "" {
		return false
	}
	return hostValidator.Var(domain, "hostname_rfc1123") == nil
}

// ValidateOptions checks the enumerated fields and excluded domains of opts.
// The returned error wraps one of the ErrInvalid* sentinels when a known
// field is at fault.
func ValidateOptions(opts model.Options) error {
	err := validate.Struct(opts)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	field := fe.StructField()
	switch {
	case field == "Mode":
		return fmt.Errorf("%w: %q", ErrInvalidMode, fe.Value())
	case field == "IconType":
		return fmt.Errorf("%w: %q", ErrInvalidIconType, fe.Value())
	case field == "IconPosition":
		return fmt.Errorf("%w: %q", ErrInvalidIconPosition, fe.Value())
	case strings.HasPrefix(field, "ExcludeDomains"):
		return fmt.Errorf("%w: %q", ErrInvalidExcludeDomain, fe.Value())
	case strings.HasPrefix(field, "Paths"):
		return fmt.Errorf("%w: %q", ErrInvalidPathScope, fe.Value())
	default:
		return err
	}
}
