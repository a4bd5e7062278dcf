package core

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	nameTag   = "name_"
	nameText  = "only letters, digits, spaces and - _ . ' characters are allowed"
	nameRegex = regexp.MustCompile(`^[\p{L}\p{N}\s\-_.'ºª]+$`)

	subjectCodeTag   = "subjectcode"
	subjectCodeText  = "must be 2 to 12 upper-case letters or digits"
	subjectCodeRegex = regexp.MustCompile(`^[A-Z0-9]{2,12}$`)

	academicYearTag   = "academicyear"
	academicYearText  = "must look like 2024-2025"
	academicYearRegex = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"
)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(nameTag, nameValidation)
	RegisterCustomTranslation(validate, translator, nameTag, nameText)

	_ = validate.RegisterValidation(subjectCodeTag, subjectCodeValidation)
	RegisterCustomTranslation(validate, translator, subjectCodeTag, subjectCodeText)

	_ = validate.RegisterValidation(academicYearTag, academicYearValidation)
	RegisterCustomTranslation(validate, translator, academicYearTag, academicYearText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// NewValidator returns a validator with every custom rule of this package registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	InitValidators(validate, translator)
	return validate
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// TranslateErrors flattens validator errors into field errors.
func TranslateErrors(errs validator.ValidationErrors, translator ut.Translator) []FieldError {
	flds := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		flds = append(flds, FieldError{Field: e.Field(), Error: e.Translate(translator)})
	}
	return flds
}

// Custom Global Validators

func nameValidation(fl validator.FieldLevel) bool {
	return nameRegex.MatchString(fl.Field().String())
}

func subjectCodeValidation(fl validator.FieldLevel) bool {
	return subjectCodeRegex.MatchString(fl.Field().String())
}

// academicYearValidation accepts "YYYY-YYYY" spanning two consecutive years.
func academicYearValidation(fl validator.FieldLevel) bool {
	m := academicYearRegex.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	return to == from+1
}
