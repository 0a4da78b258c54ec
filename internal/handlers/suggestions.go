package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"bizview/internal/ai"
	"bizview/internal/apperr"
	applog "bizview/internal/log"
	"bizview/models"
)

const maxDocumentUploadSize = 5 << 20 // 5 MiB

// Suggester is the AI gateway used by the suggestion endpoints.
type Suggester interface {
	SummarizeAppointments(ctx context.Context, input ai.AppointmentInput) (ai.AppointmentSummary, error)
	SuggestPrice(ctx context.Context, input ai.PriceInput) (ai.PriceSuggestion, error)
	SuggestRecipe(ctx context.Context, input ai.RecipeInput) (ai.RecipeSuggestion, error)
}

var suggester Suggester

// ConfigureAI installs the suggestion gateway. A nil suggester disables the AI endpoints.
func ConfigureAI(s Suggester) {
	suggester = s
}

func writeSuggestion(w http.ResponseWriter, r *http.Request, result any, err error) {
	if err != nil {
		status := errorStatus(err)
		applog.Debug(r.Context(), "suggestion failed", "path", r.URL.Path, "status", status, "error", err)
		writeJSON(w, status, suggestionResult{Error: errorMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, suggestionResult{Result: result})
}

// suggestionPreflight checks the method, the account and that the gateway is configured.
func suggestionPreflight(w http.ResponseWriter, r *http.Request) (uint, bool) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return 0, false
	}
	userID, ok := requireAccount(w, r)
	if !ok {
		return 0, false
	}
	if suggester == nil {
		writeJSON(w, http.StatusServiceUnavailable, suggestionResult{Error: "AI suggestions are not configured. Set OPENAI_API_KEY to enable them."})
		return 0, false
	}
	return userID, true
}

type appointmentsRequest struct {
	CalendarData string `json:"calendar_data"`
}

// AppointmentsSummary summarizes the calendar entries posted by the client.
func AppointmentsSummary(w http.ResponseWriter, r *http.Request) {
	if _, ok := suggestionPreflight(w, r); !ok {
		return
	}
	var payload appointmentsRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeSuggestion(w, r, nil, err)
		return
	}
	summary, err := suggester.SummarizeAppointments(r.Context(), ai.AppointmentInput{CalendarData: payload.CalendarData})
	writeSuggestion(w, r, summary, err)
}

type priceRequest struct {
	ProductID    string   `json:"product_id"`
	ProductName  string   `json:"product_name"`
	ProductCost  float64  `json:"product_cost"`
	RecipeItems  string   `json:"recipe_items"`
	ProfitMargin *float64 `json:"profit_margin"`
}

// PriceSuggestion asks for a retail price. When product_id is given the name, cost and recipe are
// read from the catalog.
func PriceSuggestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := suggestionPreflight(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	var payload priceRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeSuggestion(w, r, nil, err)
		return
	}

	input := ai.PriceInput{
		ProductName: strings.TrimSpace(payload.ProductName),
		ProductCost: payload.ProductCost,
		RecipeItems: strings.TrimSpace(payload.RecipeItems),
	}
	if id := strings.TrimSpace(payload.ProductID); id != "" {
		var product models.FinishedProduct
		if err := database.WithContext(ctx).Preload("Recipe").
			Where("id = ? AND account_id = ?", id, userID).First(&product).Error; err != nil {
			if isNotFound(err) {
				err = apperr.NotFound("product", id)
			}
			writeSuggestion(w, r, nil, err)
			return
		}
		input.ProductName = product.Name
		input.ProductCost = product.FinalCost.InexactFloat64()
		if input.RecipeItems == "" {
			items, err := describeRecipe(ctx, userID, product)
			if err != nil {
				writeSuggestion(w, r, nil, err)
				return
			}
			input.RecipeItems = items
		}
	}

	if payload.ProfitMargin != nil {
		input.ProfitMargin = *payload.ProfitMargin
	} else {
		settings, err := loadSettings(ctx, database, userID)
		if err != nil {
			writeSuggestion(w, r, nil, err)
			return
		}
		input.ProfitMargin = settings.DefaultProfitMargin
	}

	suggestion, err := suggester.SuggestPrice(ctx, input)
	writeSuggestion(w, r, suggestion, err)
}

func describeRecipe(ctx context.Context, userID uint, product models.FinishedProduct) (string, error) {
	if len(product.Recipe) == 0 {
		return "", nil
	}
	ids := make([]string, 0, len(product.Recipe))
	for _, item := range product.Recipe {
		ids = append(ids, item.RawMaterialID)
	}
	var materials []models.RawMaterial
	if err := database.WithContext(ctx).Where("account_id = ? AND id IN ?", userID, ids).Find(&materials).Error; err != nil {
		return "", err
	}
	byID := make(map[string]models.RawMaterial, len(materials))
	for _, m := range materials {
		byID[m.ID] = m
	}

	lines := make([]string, 0, len(product.Recipe))
	for _, item := range product.Recipe {
		m, ok := byID[item.RawMaterialID]
		if !ok {
			continue
		}
		cost := m.CostPerUnit.Mul(decimal.NewFromFloat(item.QuantityPerUnit)).Round(2)
		lines = append(lines, fmt.Sprintf("%s: %g %s (%s)", m.Description, item.QuantityPerUnit, m.Unit, cost.StringFixed(2)))
	}
	return strings.Join(lines, "; "), nil
}

type recipeRequest struct {
	ProductName string `json:"product_name"`
	Notes       string `json:"notes"`
}

// RecipeSuggestion picks raw materials for a product from the account's stock. It accepts JSON or a
// multipart form whose optional "document" file (PDF or text) is appended to the notes.
func RecipeSuggestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := suggestionPreflight(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	payload, err := readRecipeRequest(w, r)
	if err != nil {
		writeSuggestion(w, r, nil, err)
		return
	}

	var materials []models.RawMaterial
	if err := database.WithContext(ctx).Where("account_id = ?", userID).Order("description").Find(&materials).Error; err != nil {
		writeSuggestion(w, r, nil, err)
		return
	}
	candidates := make([]ai.Candidate, 0, len(materials))
	for _, m := range materials {
		candidates = append(candidates, ai.Candidate{ID: m.ID, Description: m.Description, Unit: m.Unit})
	}

	suggestion, err := suggester.SuggestRecipe(ctx, ai.RecipeInput{
		ProductName: strings.TrimSpace(payload.ProductName),
		Materials:   candidates,
		Notes:       strings.TrimSpace(payload.Notes),
	})
	writeSuggestion(w, r, suggestion, err)
}

func readRecipeRequest(w http.ResponseWriter, r *http.Request) (recipeRequest, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var payload recipeRequest
		err := decodeJSON(w, r, &payload)
		return payload, err
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentUploadSize+maxJSONBody)
	if err := r.ParseMultipartForm(maxDocumentUploadSize); err != nil {
		applog.Debug(r.Context(), "failed to parse recipe form", "error", err)
		return recipeRequest{}, apperr.Validation("Upload is too large or invalid. Please retry with a smaller file.")
	}
	payload := recipeRequest{
		ProductName: r.FormValue("product_name"),
		Notes:       r.FormValue("notes"),
	}

	text, err := readDocumentUpload(r)
	if err != nil {
		applog.Debug(r.Context(), "failed to read recipe document", "error", err)
		return recipeRequest{}, apperr.Validation("We couldn't read the uploaded document. Try a PDF or a text file.")
	}
	if text = strings.TrimSpace(text); text != "" {
		if payload.Notes != "" {
			payload.Notes += "\n\n"
		}
		payload.Notes += text
	}
	return payload, nil
}

func readDocumentUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("document")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	if header.Size > maxDocumentUploadSize {
		return "", fmt.Errorf("file exceeds %d bytes", maxDocumentUploadSize)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", err
	}

	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = mimetype.Detect(data).String()
	}
	if mime == "application/octet-stream" {
		mime = mimeTypeFromName(header.Filename)
	}
	switch {
	case strings.Contains(mime, "pdf"):
		return extractTextFromPDF(data)
	case strings.HasPrefix(mime, "text/"):
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported document type %q", mime)
	}
}

func extractTextFromPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", err
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

func mimeTypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".txt", ".md", ".csv":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
