package api

import (
	"fmt"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
)

// FileHandler accepts PDF uploads into the manuals source directory.
// Uploaded files are picked up by the next ingestion run.
type FileHandler struct {
	sourceDir string
}

func NewFileHandler(sourceDir string) *FileHandler {
	return &FileHandler{sourceDir: sourceDir}
}

func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	if filepath.Ext(file.Filename) != ".pdf" {
		return NewError(fiber.StatusUnsupportedMediaType, "only PDF files are accepted")
	}

	path := filepath.Join(h.sourceDir, filepath.Base(file.Filename))
	if err := c.SaveFile(file, path); err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"result": fmt.Sprintf("saved %s, run ingestion to index it", filepath.Base(file.Filename)),
	})
}
