package model

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
)

// schema returns the shared validator, reporting fields by their JSON names.
func schema() (*validator.Validate, ut.Translator) {
	validatorOnce.Do(func() {
		enLoc := en.New()
		uni := ut.New(enLoc, enLoc)
		translator, _ = uni.GetTranslator("en")

		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			tag := fld.Tag.Get("json")
			if tag == "-" || tag == "" {
				return fld.Name
			}
			if idx := strings.Index(tag, ","); idx >= 0 {
				tag = tag[:idx]
			}
			return tag
		})
		_ = en_translations.RegisterDefaultTranslations(validate, translator)
	})
	return validate, translator
}

// validateSchema checks the tags of every section, then that the classifier was fitted
// on vectors the vectorizer can produce.
func (m *Model) validateSchema() error {
	v, trans := schema()

	if err := v.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &InvalidModelError{Field: jsonPath(fe.Namespace()), Reason: fe.Translate(trans)}
		}
		return &InvalidModelError{Reason: err.Error()}
	}

	features := len(m.Vectorizer.Vocabulary)
	check := func(section string, stats map[string][]float64) error {
		labels := make([]string, 0, len(stats))
		for label := range stats {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			if n := len(stats[label]); n != features {
				return &InvalidModelError{
					Field:  "classifier." + section + "." + label,
					Reason: fmt.Sprintf("has %d features but the vocabulary has %d", n, features),
				}
			}
		}
		return nil
	}
	if err := check("featureMeans", m.Classifier.FeatureMeans); err != nil {
		return err
	}
	return check("featureVariances", m.Classifier.FeatureVariances)
}

// jsonPath drops the root type name from a validator namespace ("Model.vectorizer.minN").
func jsonPath(namespace string) string {
	if idx := strings.Index(namespace, "."); idx >= 0 {
		return namespace[idx+1:]
	}
	return namespace
}
