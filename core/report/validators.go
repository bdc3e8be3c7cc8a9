package report

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/reportal/core"
)

var (
	gradeRangeTag  = "graderange"
	gradeRangeText = "grade must be between 0 and the max grade"
)

// InitValidators registers the report validators and their english translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(feedbackStructValidation, UpdateFeedback{})
	core.RegisterCustomTranslation(validate, translator, gradeRangeTag, gradeRangeText)
}

func feedbackStructValidation(sl validator.StructLevel) {
	uf, ok := sl.Current().Interface().(UpdateFeedback)
	if !ok || !uf.Grade.Valid {
		return
	}
	if uf.Grade.Float64 < 0 || uf.Grade.Float64 > uf.MaxGrade {
		sl.ReportError(uf.Grade, "grade", "Grade", gradeRangeTag, "")
	}
}
