package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

const requiredByDriverTag = "required_by_driver"

func newValidator() (*validator.Validate, ut.Translator, error) {
	validate := validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, nil, fmt.Errorf("failed to register default translations: %w", err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.RegisterValidation("file", isReadableFile); err != nil {
		return nil, nil, fmt.Errorf("failed to register file validation: %w", err)
	}
	if err := validate.RegisterTranslation("file", trans, func(ut ut.Translator) error {
		return ut.Add("file", "{0} must be an existing and readable file", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("file", strings.TrimPrefix(fe.Namespace(), "Config."))
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register file translation: %w", err)
	}

	validate.RegisterStructValidation(validateDrivers, Config{})
	if err := validate.RegisterTranslation(requiredByDriverTag, trans, func(ut ut.Translator) error {
		return ut.Add(requiredByDriverTag, "{0} is required when {1}", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T(requiredByDriverTag, fe.Field(), fe.Param())
		return t
	}); err != nil {
		return nil, nil, fmt.Errorf("failed to register %s translation: %w", requiredByDriverTag, err)
	}

	return validate, trans, nil
}

// validateDrivers checks settings that only a selected driver needs.
func validateDrivers(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)

	if cfg.Store.Driver == "mysql" {
		if cfg.Database.Host == "" {
			sl.ReportError(cfg.Database.Host, "database.host", "Host", requiredByDriverTag, "store.driver=mysql")
		}
		if cfg.Database.Database == "" {
			sl.ReportError(cfg.Database.Database, "database.database", "Database", requiredByDriverTag, "store.driver=mysql")
		}
	}
	if cfg.Lock.Driver == "redis" && cfg.Redis.Addr == "" {
		sl.ReportError(cfg.Redis.Addr, "redis.addr", "Addr", requiredByDriverTag, "lock.driver=redis")
	}
}

func isReadableFile(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return false
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	// owner read bit
	return info.Mode().Perm()&0o400 != 0
}
