package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/orderline/orderline/internal/catalog"
	"github.com/orderline/orderline/internal/parse"
)

// GenAIInterpreter extracts order intent with Gemini, constrained to a JSON
// response schema so the output decodes straight into a ParsedInput.
type GenAIInterpreter struct {
	client   *genai.Client
	model    string
	provider catalog.Provider
}

func NewGenAIInterpreter(ctx context.Context, apiKey, model string, provider catalog.Provider) (*GenAIInterpreter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai api key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIInterpreter{client: client, model: model, provider: provider}, nil
}

func (g *GenAIInterpreter) Interpret(ctx context.Context, req Request) (*parse.ParsedInput, error) {
	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(g.prompt(req)),
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0),
			ResponseMIMEType: "application/json",
			ResponseSchema:   parsedInputSchema,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("genai generate failed: %w", err)
	}

	var in parse.ParsedInput
	if err := json.Unmarshal([]byte(result.Text()), &in); err != nil {
		return nil, fmt.Errorf("genai returned undecodable output: %w", err)
	}
	return &in, nil
}

func (g *GenAIInterpreter) prompt(req Request) string {
	var b strings.Builder
	b.WriteString("You extract structured order intent from one customer utterance at a food counter.\n")
	b.WriteString("Only use item names from the menu. Leave out anything the customer did not say.\n\n")
	b.WriteString("Menu:\n")
	b.WriteString(g.menuText())
	if req.OrderSummary != "" {
		b.WriteString("\nCurrent order:\n")
		b.WriteString(req.OrderSummary)
		b.WriteString("\n")
	}
	if req.Question != "" {
		fmt.Fprintf(&b, "\nThe customer was just asked: %q\n", req.Question)
	}
	fmt.Fprintf(&b, "\nCustomer said: %q\n", req.Utterance)
	return b.String()
}

func (g *GenAIInterpreter) menuText() string {
	var b strings.Builder
	for _, it := range g.provider.Items() {
		fmt.Fprintf(&b, "- %s ($%.2f)", it.Name, it.BasePrice)
		for _, slot := range it.Slots {
			if len(slot.Options) == 0 {
				continue
			}
			names := make([]string, 0, len(slot.Options))
			for _, o := range slot.Options {
				names = append(names, o.DisplayName)
			}
			fmt.Fprintf(&b, "; %s: %s", slot.Name, strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}

var parsedInputSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"new_items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":     {Type: genai.TypeString},
					"quantity": {Type: genai.TypeInteger},
					"slot_values": {
						Type:        genai.TypeObject,
						Description: "attribute name to chosen value",
					},
					"special": {Type: genai.TypeString},
				},
				Required: []string{"name", "quantity"},
			},
		},
		"slot_answers": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"scope":     {Type: genai.TypeString},
					"item_id":   {Type: genai.TypeString},
					"slot_name": {Type: genai.TypeString},
					"raw":       {Type: genai.TypeString},
					"value":     {Type: genai.TypeString},
				},
				Required: []string{"scope", "raw"},
			},
		},
		"modifications": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"target_text": {Type: genai.TypeString},
					"slot_name":   {Type: genai.TypeString},
					"value":       {Type: genai.TypeString},
					"raw":         {Type: genai.TypeString},
				},
				Required: []string{"raw"},
			},
		},
		"intents": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"checkout":        {Type: genai.TypeBoolean},
				"cancel_order":    {Type: genai.TypeBoolean},
				"cancel_item_ref": {Type: genai.TypeString},
			},
		},
		"order_type": {Type: genai.TypeString, Enum: []string{"pickup", "delivery"}},
		"address": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"street":   {Type: genai.TypeString},
				"city":     {Type: genai.TypeString},
				"state":    {Type: genai.TypeString},
				"zip_code": {Type: genai.TypeString},
				"apt_unit": {Type: genai.TypeString},
			},
		},
		"customer_name":  {Type: genai.TypeString},
		"phone":          {Type: genai.TypeString},
		"email":          {Type: genai.TypeString},
		"payment_method": {Type: genai.TypeString, Enum: []string{"in_store", "cash_delivery", "card_link"}},
		"confirmation":   {Type: genai.TypeBoolean},
	},
}
