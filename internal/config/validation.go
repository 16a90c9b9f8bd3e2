package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags and then the rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

func validateCustomRules(cfg *Config) error {
	if cfg.Resources.Backend == "s3" && cfg.Resources.S3 == nil {
		return fmt.Errorf("resources: backend s3 requires an S3 section")
	}
	switch cfg.Sessions.Backend {
	case "postgres":
		if cfg.Sessions.Postgres == nil {
			return fmt.Errorf("sessions: backend postgres requires a Postgres section")
		}
		if cfg.Sessions.MigrationsDir == "" {
			return fmt.Errorf("sessions: backend postgres requires MigrationsDir")
		}
	case "badger":
		if cfg.Sessions.BadgerDir == "" {
			return fmt.Errorf("sessions: backend badger requires BadgerDir")
		}
	}
	return nil
}

func formatValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		e := errs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
