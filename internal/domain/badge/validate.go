package badge

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.Float64 && fl.Field().Kind() != reflect.Float32 {
				return false
			}
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		})
	})
	return validate
}

// Validate checks that a badge definition can be scored meaningfully.
// Disabled rules are ignored. Every problem is reported as
// shared.ErrBadgeConfigInvalid.
func Validate(b Badge) error {
	var problems []string

	// Disabled rules may be half-edited drafts; only enabled ones are checked.
	checked := b
	checked.Rules = b.EnabledRules()

	if err := structValidator().Struct(checked); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return shared.WrapError("badge", "Validate", shared.ErrBadgeConfigInvalid, b.ID, err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	}

	if len(checked.Rules) == 0 {
		problems = append(problems, "badge has no enabled rules")
	}

	if len(problems) > 0 {
		return shared.WrapError("badge", "Validate", shared.ErrBadgeConfigInvalid,
			fmt.Sprintf("badge %q: %s", b.ID, strings.Join(problems, "; ")), nil)
	}
	return nil
}

// ValidateCategory checks that a category can be stored.
func ValidateCategory(cat Category) error {
	if err := structValidator().Struct(cat); err != nil {
		return shared.WrapError("badge", "ValidateCategory", shared.ErrBadgeConfigInvalid,
			fmt.Sprintf("category %q", cat.ID), err)
	}
	return nil
}
