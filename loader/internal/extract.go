package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"manualrag/types"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Extraction is the document-extraction collaborator's output for one
// file: per-page text plus the document's true page count. Every chunk
// page the pipeline produces stays inside [1, PageCount].
type Extraction struct {
	Pages     []types.PageText
	PageCount int
}

type Extractor interface {
	Extract(ctx context.Context, path string) (*Extraction, error)
}

// DoclingExtractor posts the PDF to a docling-style conversion service
// and reads back per-page text. pdfcpu guards the file first, so
// malformed PDFs fail before any network call.
type DoclingExtractor struct {
	url        string
	client     *http.Client
	cropTop    float64
	cropBottom float64
}

type extractResponse struct {
	Document struct {
		Pages []types.PageText `json:"pages"`
	} `json:"document"`
}

func NewDoclingExtractor() *DoclingExtractor {
	url := os.Getenv("EXTRACTOR_URL")
	if url == "" {
		url = "http://localhost:5001/v1/convert/file"
	}
	return &DoclingExtractor{
		url:        url,
		client:     &http.Client{Timeout: 120 * time.Second},
		cropTop:    getenvPoints("EXTRACT_CROP_TOP"),
		cropBottom: getenvPoints("EXTRACT_CROP_BOTTOM"),
	}
}

func (e *DoclingExtractor) Extract(ctx context.Context, path string) (*Extraction, error) {
	if err := api.ValidateFile(path, nil); err != nil {
		return nil, types.ExtractionError{File: path, Err: fmt.Errorf("invalid pdf: %w", err)}
	}
	count, err := api.PageCountFile(path)
	if err != nil {
		return nil, types.ExtractionError{File: path, Err: fmt.Errorf("page count: %w", err)}
	}

	uploadPath := path
	if e.cropTop > 0 || e.cropBottom > 0 {
		cropped, err := e.cropCopy(path)
		if err != nil {
			return nil, types.ExtractionError{File: path, Err: err}
		}
		defer os.Remove(cropped)
		uploadPath = cropped
	}

	pages, err := e.convert(ctx, uploadPath)
	if err != nil {
		return nil, types.ExtractionError{File: path, Err: err}
	}

	kept := make([]types.PageText, 0, len(pages))
	for _, p := range pages {
		if p.Page < 1 || p.Page > count {
			continue
		}
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		kept = append(kept, p)
	}
	return &Extraction{Pages: kept, PageCount: count}, nil
}

// cropCopy strips headers and footers on a temp copy so the original
// stays servable as-is under /manuals.
func (e *DoclingExtractor) cropCopy(path string) (string, error) {
	tmp, err := os.CreateTemp("", "crop-*.pdf")
	if err != nil {
		return "", err
	}
	tmp.Close()
	if err := RemoveHeaderFooterCrop(path, tmp.Name(), e.cropTop, e.cropBottom); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (e *DoclingExtractor) convert(ctx context.Context, path string) ([]types.PageText, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", e.url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor status %d: %s", resp.StatusCode, string(body))
	}

	var d extractResponse
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return d.Document.Pages, nil
}

func getenvPoints(key string) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return 0
}
