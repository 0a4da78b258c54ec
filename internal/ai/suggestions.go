package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bizview/internal/apperr"
	applog "bizview/internal/log"
)

// NoAppointmentsMessage is returned without contacting the model when the calendar is empty.
const NoAppointmentsMessage = "No appointments scheduled for this period."

const unavailableMessage = "The AI assistant could not complete the request. Please try again later."

// ErrSchema reports a model response that does not match the expected JSON shape.
var ErrSchema = errors.New("ai: response does not match schema")

// AppointmentSummary is the decoded appointment-summary response.
type AppointmentSummary struct {
	Summary string `json:"summary"`
}

// PriceSuggestion is the decoded price-suggestion response.
type PriceSuggestion struct {
	SuggestedPrice float64 `json:"suggestedPrice"`
	Justification  string  `json:"justification"`
}

// RecipeSuggestion is the decoded recipe-suggestion response.
type RecipeSuggestion struct {
	SuggestedMaterialIDs []string `json:"suggestedMaterialIds"`
}

// DecodeAppointmentSummary validates raw model output as an AppointmentSummary.
func DecodeAppointmentSummary(raw string) (AppointmentSummary, error) {
	var payload struct {
		Summary *string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return AppointmentSummary{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if payload.Summary == nil || strings.TrimSpace(*payload.Summary) == "" {
		return AppointmentSummary{}, fmt.Errorf("%w: summary is missing", ErrSchema)
	}
	return AppointmentSummary{Summary: strings.TrimSpace(*payload.Summary)}, nil
}

// DecodePriceSuggestion validates raw model output as a PriceSuggestion. The price must be a JSON
// number or a string holding exactly one amount, and must be positive.
func DecodePriceSuggestion(raw string) (PriceSuggestion, error) {
	var payload struct {
		SuggestedPrice any    `json:"suggestedPrice"`
		Justification  string `json:"justification"`
	}
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return PriceSuggestion{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	price, err := parsePrice(payload.SuggestedPrice)
	if err != nil {
		return PriceSuggestion{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if price <= 0 {
		return PriceSuggestion{}, fmt.Errorf("%w: suggestedPrice must be greater than zero", ErrSchema)
	}
	justification := strings.Join(strings.Fields(payload.Justification), " ")
	if justification == "" {
		return PriceSuggestion{}, fmt.Errorf("%w: justification is missing", ErrSchema)
	}
	return PriceSuggestion{SuggestedPrice: price, Justification: justification}, nil
}

// DecodeRecipeSuggestion validates raw model output as a RecipeSuggestion, keeping only ids present
// in allowed. Duplicates are removed and the model's order is preserved.
func DecodeRecipeSuggestion(raw string, allowed []Candidate) (RecipeSuggestion, error) {
	var payload struct {
		SuggestedMaterialIDs *[]string `json:"suggestedMaterialIds"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return RecipeSuggestion{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if payload.SuggestedMaterialIDs == nil {
		return RecipeSuggestion{}, fmt.Errorf("%w: suggestedMaterialIds is missing", ErrSchema)
	}

	known := make(map[string]struct{}, len(allowed))
	for _, c := range allowed {
		known[c.ID] = struct{}{}
	}
	ids := []string{}
	seen := make(map[string]struct{})
	for _, id := range *payload.SuggestedMaterialIDs {
		id = strings.TrimSpace(id)
		if _, ok := known[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return RecipeSuggestion{SuggestedMaterialIDs: ids}, nil
}

// SummarizeAppointments asks the model for a short summary of the calendar entries.
func (c *Client) SummarizeAppointments(ctx context.Context, input AppointmentInput) (AppointmentSummary, error) {
	if calendarIsEmpty(input.CalendarData) {
		return AppointmentSummary{Summary: NoAppointmentsMessage}, nil
	}

	content, err := c.complete(ctx, appointmentSystemPrompt, BuildAppointmentPrompt(input))
	if err != nil {
		return AppointmentSummary{}, c.fail(ctx, "appointments-summary", err)
	}
	summary, err := DecodeAppointmentSummary(content)
	if err != nil {
		return AppointmentSummary{}, c.fail(ctx, "appointments-summary", err)
	}
	return summary, nil
}

// SuggestPrice asks the model for a retail price for the product.
func (c *Client) SuggestPrice(ctx context.Context, input PriceInput) (PriceSuggestion, error) {
	if strings.TrimSpace(input.ProductName) == "" {
		return PriceSuggestion{}, apperr.Validation("product name is required")
	}
	if input.ProductCost < 0 {
		return PriceSuggestion{}, apperr.Validation("product cost must not be negative")
	}

	content, err := c.complete(ctx, priceSystemPrompt, BuildPricePrompt(input))
	if err != nil {
		return PriceSuggestion{}, c.fail(ctx, "price-suggestion", err)
	}
	suggestion, err := DecodePriceSuggestion(content)
	if err != nil {
		return PriceSuggestion{}, c.fail(ctx, "price-suggestion", err)
	}
	return suggestion, nil
}

// SuggestRecipe asks the model which of the candidate materials the product needs.
func (c *Client) SuggestRecipe(ctx context.Context, input RecipeInput) (RecipeSuggestion, error) {
	if strings.TrimSpace(input.ProductName) == "" {
		return RecipeSuggestion{}, apperr.Validation("product name is required")
	}
	if len(input.Materials) == 0 {
		return RecipeSuggestion{}, apperr.Validation("at least one raw material is required")
	}

	content, err := c.complete(ctx, recipeSystemPrompt, BuildRecipePrompt(input))
	if err != nil {
		return RecipeSuggestion{}, c.fail(ctx, "recipe-suggestion", err)
	}
	suggestion, err := DecodeRecipeSuggestion(content, input.Materials)
	if err != nil {
		return RecipeSuggestion{}, c.fail(ctx, "recipe-suggestion", err)
	}
	return suggestion, nil
}

func (c *Client) fail(ctx context.Context, operation string, err error) error {
	applog.Error(ctx, "ai suggestion failed", "operation", operation, "model", c.model, "error", err)
	return apperr.External(unavailableMessage, err)
}

func calendarIsEmpty(data string) bool {
	data = strings.TrimSpace(data)
	switch data {
	case "", "[]", "{}", "null":
		return true
	}
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(data), &entries); err == nil {
		return len(entries) == 0
	}
	return false
}

// parsePrice reads suggestedPrice. Strings are accepted only when the whole value is a single
// amount, optionally prefixed with R$, in either "1.234,56" or "1,234.56" form.
func parsePrice(value any) (float64, error) {
	switch v := value.(type) {
	case json.Number:
		return strconv.ParseFloat(v.String(), 64)
	case string:
		return parseAmount(v)
	default:
		return 0, fmt.Errorf("suggestedPrice must be a number, got %T", value)
	}
}

func parseAmount(value string) (float64, error) {
	clean := strings.TrimSpace(value)
	clean = strings.TrimSpace(strings.TrimPrefix(clean, "R$"))
	if !amountPattern.MatchString(clean) {
		return 0, fmt.Errorf("suggestedPrice %q is not a single amount", value)
	}

	comma := strings.LastIndex(clean, ",")
	dot := strings.LastIndex(clean, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		clean = strings.ReplaceAll(clean, ".", "")
		clean = strings.Replace(clean, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		clean = strings.ReplaceAll(clean, ",", "")
	case comma >= 0:
		clean = strings.Replace(clean, ",", ".", 1)
	}

	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("suggestedPrice %q is not a single amount", value)
	}
	price, _ := amount.Float64()
	return price, nil
}

var amountPattern = regexp.MustCompile(`^\d[\d.,]*$`)
