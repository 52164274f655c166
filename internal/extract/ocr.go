package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/pkordes/itinerary/internal/domain"
)

// DefaultOCRModel is the Mistral OCR model used when none is configured.
const DefaultOCRModel = "mistral-ocr-latest"

// MistralOCR sends documents to a Mistral-compatible /v1/ocr endpoint and
// joins the markdown of every page.
type MistralOCR struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewMistralOCR returns an OCR client for baseURL (e.g. https://api.mistral.ai).
func NewMistralOCR(baseURL, apiKey, model string, timeout time.Duration) *MistralOCR {
	if model == "" {
		model = DefaultOCRModel
	}
	return &MistralOCR{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

type ocrResponse struct {
	Pages []struct {
		Index    int    `json:"index"`
		Markdown string `json:"markdown"`
	} `json:"pages"`
}

// Text implements OCR. PDFs are sent as a document_url and images as an
// image_url, both inline base64 data URLs.
func (o *MistralOCR) Text(ctx context.Context, doc domain.Document) (string, error) {
	mediaType := baseMediaType(doc.ContentType)
	dataURL := "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(doc.Data)

	document := ocrDocument{Type: "document_url", DocumentURL: dataURL}
	if strings.HasPrefix(mediaType, "image/") {
		document = ocrDocument{Type: "image_url", ImageURL: dataURL}
	}

	body, err := json.Marshal(ocrRequest{Model: o.model, Document: document})
	if err != nil {
		return "", fmt.Errorf("extract.MistralOCR.Text: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("extract.MistralOCR.Text: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("extract.MistralOCR.Text: %s: %w", doc.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("extract.MistralOCR.Text: %s: status %d: %s", doc.Name, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("extract.MistralOCR.Text: decode: %w", err)
	}

	pages := make([]string, 0, len(out.Pages))
	for _, p := range out.Pages {
		if p.Markdown != "" {
			pages = append(pages, p.Markdown)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

// PlainTextOCR returns text/* documents verbatim and hands everything else
// to Next. With a nil Next every document is treated as text.
type PlainTextOCR struct {
	Next OCR
}

// Text implements OCR.
func (p PlainTextOCR) Text(ctx context.Context, doc domain.Document) (string, error) {
	if p.Next == nil || strings.HasPrefix(baseMediaType(doc.ContentType), "text/") {
		return string(doc.Data), nil
	}
	return p.Next.Text(ctx, doc)
}

// baseMediaType strips parameters such as charset. An empty or malformed
// content type is treated as PDF, the primary upload format.
func baseMediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt == "" {
		return "application/pdf"
	}
	return mt
}
