package api

import (
	"path/filepath"

	"manualrag/store"
	"manualrag/types"

	"github.com/gofiber/fiber/v2"
)

// ManualsHandler serves the listing the viewer populates its picker
// from. The pdf_url points into the statically served manuals
// directory; the API never streams document bytes itself.
type ManualsHandler struct {
	manuals store.ManualStore
}

func NewManualsHandler(manuals store.ManualStore) *ManualsHandler {
	return &ManualsHandler{manuals: manuals}
}

func (h *ManualsHandler) HandleManuals(c *fiber.Ctx) error {
	manuals, err := h.manuals.ListManuals(c.Context())
	if err != nil {
		return err
	}

	infos := make([]types.ManualInfo, 0, len(manuals))
	for _, m := range manuals {
		infos = append(infos, types.ManualInfo{
			ID:     m.ID,
			Label:  m.Label,
			PDFURL: "/manuals/" + filepath.Base(m.SourcePath),
		})
	}
	return c.JSON(infos)
}
