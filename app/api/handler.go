package api

import (
	"manualrag/answer"
	"manualrag/retriever"
	"manualrag/store"
	"manualrag/types"

	"github.com/gofiber/fiber/v2"
)

const defaultTopK = 5

// RequestHandler serves the ask endpoint: hybrid retrieval filtered to
// one manual, then answer synthesis with page citations.
type RequestHandler struct {
	manuals     store.ManualStore
	retriever   *retriever.Retriever
	synthesizer *answer.Synthesizer
}

func NewRequestHandler(manuals store.ManualStore, r *retriever.Retriever, s *answer.Synthesizer) *RequestHandler {
	return &RequestHandler{
		manuals:     manuals,
		retriever:   r,
		synthesizer: s,
	}
}

func (h *RequestHandler) HandleAsk(c *fiber.Ctx) error {
	var params types.AskParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}

	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	manual, err := h.manuals.GetManual(c.Context(), params.ManualID)
	if err != nil {
		return err
	}
	if manual == nil {
		return ErrNotFound(params.ManualID, "manual")
	}

	result, err := h.retriever.Retrieve(c.Context(), params.Query, params.ManualID, defaultTopK)
	if err != nil {
		return err
	}

	ans, err := h.synthesizer.Answer(c.Context(), params.Query, *manual, result.Candidates, result.Degraded)
	if err != nil {
		return err
	}

	return c.JSON(types.NewAskResponse(ans))
}
