package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"bizview/internal/apperr"
)

func newTestClient(t *testing.T, content string, status int) (*Client, *int32, *map[string]any) {
	t.Helper()

	var calls int32
	received := map[string]any{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, &calls, &received
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{APIKey: "  "}); err == nil {
		t.Fatal("expected error for blank api key")
	}
}

func TestSummarizeAppointmentsSkipsEmptyCalendar(t *testing.T) {
	t.Parallel()

	client, calls, _ := newTestClient(t, `{"summary":"unused"}`, http.StatusOK)
	for _, data := range []string{"", "  ", "[]", " [ ] "} {
		got, err := client.SummarizeAppointments(context.Background(), AppointmentInput{CalendarData: data})
		if err != nil {
			t.Fatalf("SummarizeAppointments(%q) error = %v", data, err)
		}
		if got.Summary != NoAppointmentsMessage {
			t.Fatalf("summary = %q, want fixed message", got.Summary)
		}
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Fatalf("expected no provider calls, got %d", n)
	}
}

func TestSummarizeAppointmentsCallsModel(t *testing.T) {
	t.Parallel()

	client, calls, received := newTestClient(t, `{"summary":"Two fittings on Monday."}`, http.StatusOK)
	got, err := client.SummarizeAppointments(context.Background(), AppointmentInput{
		CalendarData: `[{"title":"Fitting","date":"2024-05-13"}]`,
	})
	if err != nil {
		t.Fatalf("SummarizeAppointments() error = %v", err)
	}
	if got.Summary != "Two fittings on Monday." {
		t.Fatalf("summary = %q", got.Summary)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("expected one provider call, got %d", n)
	}
	format, _ := (*received)["response_format"].(map[string]any)
	if format["type"] != "json_object" {
		t.Fatalf("expected json_object response format, got %v", (*received)["response_format"])
	}
}

func TestSuggestPriceReturnsPositivePrice(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t, `{"suggestedPrice": 18.5, "justification": "Covers cost with a healthy margin."}`, http.StatusOK)
	got, err := client.SuggestPrice(context.Background(), PriceInput{
		ProductName: "Bolo",
		ProductCost: 10,
		RecipeItems: "farinha, ovos",
	})
	if err != nil {
		t.Fatalf("SuggestPrice() error = %v", err)
	}
	if got.SuggestedPrice <= 0 || got.Justification == "" {
		t.Fatalf("unexpected suggestion %+v", got)
	}
}

func TestSuggestPriceRejectsNonConformingOutput(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t, `{"suggestedPrice": 0, "justification": ""}`, http.StatusOK)
	_, err := client.SuggestPrice(context.Background(), PriceInput{ProductName: "Bolo", ProductCost: 10})
	if !errors.Is(err, apperr.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected schema cause, got %v", err)
	}
}

func TestSuggestPriceSurfacesProviderFailure(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t, "", http.StatusInternalServerError)
	_, err := client.SuggestPrice(context.Background(), PriceInput{ProductName: "Bolo", ProductCost: 10})
	if !errors.Is(err, apperr.ErrExternalService) {
		t.Fatalf("expected external service error, got %v", err)
	}
	if apperr.Status(err) != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", apperr.Status(err))
	}
}

func TestSuggestPriceValidatesInput(t *testing.T) {
	t.Parallel()

	client, calls, _ := newTestClient(t, "{}", http.StatusOK)
	_, err := client.SuggestPrice(context.Background(), PriceInput{ProductCost: 10})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Fatalf("expected no provider calls, got %d", n)
	}
}

func TestSuggestRecipeDropsUnknownIDs(t *testing.T) {
	t.Parallel()

	client, _, received := newTestClient(t, `{"suggestedMaterialIds": ["m2", "ghost", "m1", "m2"]}`, http.StatusOK)
	got, err := client.SuggestRecipe(context.Background(), RecipeInput{
		ProductName: "Cake",
		Materials: []Candidate{
			{ID: "m1", Description: "Flour", Unit: "kg"},
			{ID: "m2", Description: "Eggs", Unit: "un"},
		},
	})
	if err != nil {
		t.Fatalf("SuggestRecipe() error = %v", err)
	}
	if strings.Join(got.SuggestedMaterialIDs, ",") != "m2,m1" {
		t.Fatalf("ids = %v, want [m2 m1]", got.SuggestedMaterialIDs)
	}

	messages, _ := (*received)["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	if content, _ := user["content"].(string); !strings.Contains(content, "- m1: Flour [kg]") {
		t.Fatalf("prompt does not list candidates: %q", content)
	}
}

func TestSuggestRecipeRequiresCandidates(t *testing.T) {
	t.Parallel()

	client, _, _ := newTestClient(t, "{}", http.StatusOK)
	_, err := client.SuggestRecipe(context.Background(), RecipeInput{ProductName: "Cake"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodePriceSuggestion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    float64
		wantErr bool
	}{
		{"number", `{"suggestedPrice": 12.5, "justification": "ok"}`, 12.5, false},
		{"string with currency", `{"suggestedPrice": "R$ 45,90", "justification": "ok"}`, 45.9, false},
		{"brazilian thousands", `{"suggestedPrice": "R$ 1.234,56", "justification": "ok"}`, 1234.56, false},
		{"us thousands", `{"suggestedPrice": "1,234.56", "justification": "ok"}`, 1234.56, false},
		{"range in words", `{"suggestedPrice": "between 40 and 50", "justification": "ok"}`, 0, true},
		{"two amounts", `{"suggestedPrice": "40 - 50", "justification": "ok"}`, 0, true},
		{"malformed separators", `{"suggestedPrice": "1.2.3", "justification": "ok"}`, 0, true},
		{"boolean", `{"suggestedPrice": true, "justification": "ok"}`, 0, true},
		{"missing price", `{"justification": "ok"}`, 0, true},
		{"zero", `{"suggestedPrice": 0, "justification": "ok"}`, 0, true},
		{"negative", `{"suggestedPrice": -3, "justification": "ok"}`, 0, true},
		{"missing justification", `{"suggestedPrice": 3}`, 0, true},
		{"not json", `price is 10`, 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodePriceSuggestion(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrSchema) {
					t.Fatalf("expected schema error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodePriceSuggestion() error = %v", err)
			}
			if got.SuggestedPrice != tt.want {
				t.Fatalf("price = %v, want %v", got.SuggestedPrice, tt.want)
			}
		})
	}
}

func TestDecodeRecipeSuggestionRequiresField(t *testing.T) {
	t.Parallel()

	if _, err := DecodeRecipeSuggestion(`{"ids": []}`, nil); !errors.Is(err, ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
	got, err := DecodeRecipeSuggestion(`{"suggestedMaterialIds": ["x"]}`, []Candidate{{ID: "m1"}})
	if err != nil {
		t.Fatalf("DecodeRecipeSuggestion() error = %v", err)
	}
	if len(got.SuggestedMaterialIDs) != 0 {
		t.Fatalf("expected empty list, got %v", got.SuggestedMaterialIDs)
	}
}

func TestBuildPricePromptIncludesInputs(t *testing.T) {
	t.Parallel()

	prompt := BuildPricePrompt(PriceInput{ProductName: "Bolo", ProductCost: 10, RecipeItems: "farinha, ovos", ProfitMargin: 0.3})
	for _, want := range []string{"Product: Bolo", "cost per unit: 10.00", "farinha, ovos", "margin: 30%"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt %q missing %q", prompt, want)
		}
	}
}
