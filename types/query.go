package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

type AskParams struct {
	ManualID string `json:"manual_id" validate:"required"`
	Query    string `json:"query" validate:"required"`
}

// AskResponse is the wire shape consumed by the viewer. Degraded marks
// answers produced from a single retrieval backend.
type AskResponse struct {
	Answer         string           `json:"answer"`
	Citations      []Citation       `json:"citations"`
	ManualSections []FusedCandidate `json:"manual_sections"`
	UsedModel      string           `json:"used_model"`
	TopPages       []int            `json:"top_pages"`
	ManualID       string           `json:"manual_id"`
	Degraded       bool             `json:"degraded,omitempty"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func (params *AskParams) Validate() map[string]string {
	validate := validator.New()
	if err := validate.Struct(params); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

// NewAskResponse projects an AnswerResult onto the wire shape.
func NewAskResponse(res *AnswerResult) *AskResponse {
	return &AskResponse{
		Answer:         res.Answer,
		Citations:      res.Citations,
		ManualSections: res.ManualSections,
		UsedModel:      res.UsedModel,
		TopPages:       res.TopPages,
		ManualID:       res.ManualID,
		Degraded:       res.Degraded,
	}
}
