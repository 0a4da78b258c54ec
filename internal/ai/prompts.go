package ai

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	appointmentSystemPrompt = `You are an assistant for a small business owner. You read calendar data and write a short, practical summary of the upcoming appointments.
Respond with strictly valid JSON using this schema: {"summary": string}. Never include markdown or commentary outside the JSON payload.`

	priceSystemPrompt = `You are a pricing consultant for small food and craft businesses. You suggest a retail price from production costs.
Respond with strictly valid JSON using this schema: {"suggestedPrice": number, "justification": string}. The price must be greater than zero. Never include markdown or commentary outside the JSON payload.`

	recipeSystemPrompt = `You are a production assistant. Given a product and the raw materials available in stock, you choose the materials most likely needed to make the product.
Respond with strictly valid JSON using this schema: {"suggestedMaterialIds": [string]}. Only use ids from the provided list. Never include markdown or commentary outside the JSON payload.`
)

// AppointmentInput carries the calendar entries to summarize, usually a JSON array.
type AppointmentInput struct {
	CalendarData string
}

// PriceInput describes the product to price.
type PriceInput struct {
	ProductName  string
	ProductCost  float64
	RecipeItems  string
	ProfitMargin float64
}

// Candidate is a raw material the model may pick for a recipe.
type Candidate struct {
	ID          string
	Description string
	Unit        string
}

// RecipeInput describes the product whose recipe should be suggested.
type RecipeInput struct {
	ProductName string
	Materials   []Candidate
	Notes       string
}

// BuildAppointmentPrompt renders the user prompt for an appointment summary.
func BuildAppointmentPrompt(input AppointmentInput) string {
	return fmt.Sprintf(`Summarize the following appointments for the business owner. Mention dates, clients and anything that needs preparation. Keep it under 120 words.

Calendar data:
%s`, strings.TrimSpace(input.CalendarData))
}

// BuildPricePrompt renders the user prompt for a price suggestion.
func BuildPricePrompt(input PriceInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", strings.TrimSpace(input.ProductName))
	fmt.Fprintf(&b, "Production cost per unit: %s\n", strconv.FormatFloat(input.ProductCost, 'f', 2, 64))
	if items := strings.TrimSpace(input.RecipeItems); items != "" {
		fmt.Fprintf(&b, "Recipe items: %s\n", items)
	}
	if input.ProfitMargin > 0 {
		fmt.Fprintf(&b, "Desired profit margin: %s%%\n", strconv.FormatFloat(math.Round(input.ProfitMargin*1000)/10, 'f', -1, 64))
	}
	b.WriteString("\nSuggest a competitive retail price per unit and justify it in one or two sentences.")
	return b.String()
}

// BuildRecipePrompt renders the user prompt for a recipe suggestion, listing every candidate material.
func BuildRecipePrompt(input RecipeInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n\nAvailable raw materials (id: description [unit]):\n", strings.TrimSpace(input.ProductName))
	for _, m := range input.Materials {
		fmt.Fprintf(&b, "- %s: %s", m.ID, m.Description)
		if m.Unit != "" {
			fmt.Fprintf(&b, " [%s]", m.Unit)
		}
		b.WriteString("\n")
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		b.WriteString("\nReference notes:\n")
		b.WriteString(notes)
		b.WriteString("\n")
	}
	b.WriteString("\nReturn the ids of the materials needed for this product.")
	return b.String()
}
