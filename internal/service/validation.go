package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/noah-isme/warga-api/pkg/errors"
)

var nikPattern = regexp.MustCompile(`^[0-9]{16}$`)

var (
	genders   = []string{"Laki-laki", "Perempuan"}
	religions = []string{"Islam", "Kristen", "Katolik", "Hindu", "Buddha", "Konghucu"}
	maritals  = []string{"Belum Menikah", "Menikah", "Cerai Hidup", "Cerai Mati"}
)

// changeFieldRules bounds each editable resident column a change request may carry.
var changeFieldRules = map[string]string{
	"alamat":     "required",
	"no_telepon": "max=15",
	"pekerjaan":  "max=100",
	"pendidikan": "max=50",
	"rt":         "required,max=3",
	"rw":         "required,max=3",
	"kelurahan":  "required,max=100",
	"kecamatan":  "required,max=100",
	"kota":       "required,max=100",
	"provinsi":   "required,max=100",
	"kode_pos":   "max=5",
}

// NewValidator returns a validator with the registry's custom rules and JSON field naming.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("nik", func(fl validator.FieldLevel) bool {
		return nikPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("gender", oneOf(genders))
	_ = v.RegisterValidation("religion", oneOf(religions))
	_ = v.RegisterValidation("marital", oneOf(maritals))
	return v
}

func oneOf(values []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		for _, v := range values {
			if s == v {
				return true
			}
		}
		return false
	}
}

// validationError converts validator output into a VALIDATION_ERROR carrying per-field messages.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, appErrors.ErrValidation.Message)
	}
	fields := make(appErrors.FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fieldMessage(fe)
	}
	return appErrors.Validation(fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "nik":
		return "must be exactly 16 digits"
	case "datetime":
		return "must be a date formatted YYYY-MM-DD"
	case "gender":
		return "must be one of " + strings.Join(genders, ", ")
	case "religion":
		return "must be one of " + strings.Join(religions, ", ")
	case "marital":
		return "must be one of " + strings.Join(maritals, ", ")
	case "uuid":
		return "must be a valid id"
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}

// fieldError builds a single-field VALIDATION_ERROR.
func fieldError(field, message string) error {
	return appErrors.Validation(appErrors.FieldErrors{field: message})
}
