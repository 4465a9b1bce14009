package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks struct constraints and the cross-field rules the tags
// cannot express.
func Validate(o *Options) error {
	if err := getValidator().Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag()+paramSuffix(fe.Param()), fe.Value()))
			}
			return fmt.Errorf("invalid options: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	if err := o.Database.Validate(); err != nil {
		return fmt.Errorf("invalid database options: %w", err)
	}

	for _, group := range [][]string{
		o.Modules.Models, o.Modules.Routers, o.Modules.Actions,
		o.Modules.Seeds, o.Modules.Migrations, o.Modules.Hooks, o.Modules.Ignore,
	} {
		for _, pattern := range group {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf("invalid module pattern %q", pattern)
			}
		}
	}

	if o.RunDropDatabase && o.IsProduction() {
		return errors.New("dropping the database is not allowed in production")
	}
	return nil
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}
