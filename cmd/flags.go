package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conneroisu/psbuild/internal/logging"
)

// AddFlagValidation makes the named flag reject values validator refuses
// at parse time.
func AddFlagValidation(flags *pflag.FlagSet, flagName string, validator func(string) error) {
	flag := flags.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// OneOf returns a validator accepting only the given choices.
func OneOf(choices ...string) func(string) error {
	return func(val string) error {
		for _, choice := range choices {
			if val == choice {
				return nil
			}
		}
		return fmt.Errorf("must be one of %s, got %q", strings.Join(choices, ", "), val)
	}
}

// ValidateLogLevel accepts the levels logging.ParseLevel understands.
func ValidateLogLevel(val string) error {
	_, err := logging.ParseLevel(val)
	return err
}
