package gateway

import (
	"fmt"

	"github.com/growmate-app/growmate/internal/gemini"
)

const chatInstruction = `You are Bud, the GrowMate cultivation coach. You help home growers keep their plants healthy with practical, encouraging advice.

Formatting rules:
1. Use numbered lists for any steps or multiple recommendations.
2. Never use literal asterisks or hash characters for formatting.
3. Emphasize key words by CAPITALIZING them instead of markdown bold.
4. Use at most one emoji per reply, and only when it fits naturally.
5. Keep answers concise and specific to the grower's situation.`

const insightInstruction = `You are a cannabis strain genetics expert. When asked about a strain, cover its lineage and parent strains, the original breeder, typical grow style and difficulty, flowering time, and its terpene and effect profile. Answer in plain prose without markdown symbols. If the strain is unknown to you, say so instead of guessing.`

const diagnosisInstructionFmt = `You are an expert plant pathologist examining a photo of a cannabis plant.

Grow context: strain %q, cultivation method %s, grower experience level %s.

Respond with STRICTLY VALID JSON and nothing else, matching exactly this schema:
{
  "diagnosis": string,
  "severity": "low" | "medium" | "high",
  "healthScore": number (0-100),
  "confidence": number (0-100),
  "growthStage": "seedling" | "vegetative" | "flowering" | "harvest",
  "topAction": string,
  "fixSteps": [string],
  "preventionSteps": [string],
  "nutrients": { "nitrogen": string, "phosphorus": string, "potassium": string },
  "environment": { "temperature": string, "humidity": string, "light": string },
  "estimatedYield": string,
  "harvestWindow": string,
  "riskScore": number (0-100)
}

Do not wrap the JSON in code fences. Do not add commentary before or after it.`

// wakeupPrompt is the trivial directive sent to keep the provider path warm.
const wakeupPrompt = "ping"

// Generation parameters applied to every call.
const (
	maxOutputTokensChat      = 1024
	maxOutputTokensDiagnosis = 2048
)

// Composed is the provider-ready form of a request: which model to call,
// the per-mode system instruction, the new turn's parts, and normalized
// prior history (chat only).
type Composed struct {
	Model             string
	SystemInstruction string
	Parts             []gemini.Part
	History           []gemini.Content
	// WantJSON forces a JSON response MIME type (diagnosis).
	WantJSON bool
	// Conversational applies the chat safety settings.
	Conversational bool
	MaxOutputTokens int
}

// Composer builds provider requests from parsed gateway requests. It is
// pure: no I/O, fully determined by its inputs.
type Composer struct {
	chatModel      string
	diagnosisModel string
}

func NewComposer(chatModel, diagnosisModel string) *Composer {
	return &Composer{
		chatModel:      chatModel,
		diagnosisModel: diagnosisModel,
	}
}

func (c *Composer) Compose(req Request) *Composed {
	switch r := req.(type) {
	case WakeupRequest:
		return &Composed{
			Model:           c.chatModel,
			Parts:           []gemini.Part{{Text: wakeupPrompt}},
			MaxOutputTokens: 16,
		}

	case ChatRequest:
		parts := []gemini.Part{{Text: r.Prompt}}
		if r.Prompt == "" {
			parts = nil
		}
		if r.Attachment != nil {
			parts = append(parts, gemini.Part{
				InlineData: &gemini.InlineData{MimeType: r.Attachment.MimeType, Data: r.Attachment.Data},
			})
		}
		return &Composed{
			Model:             pickModel(r.Model, c.chatModel),
			SystemInstruction: chatInstruction,
			Parts:             parts,
			History:           historyContents(DropLeadingNonUserTurns(r.History)),
			Conversational:    true,
			MaxOutputTokens:   maxOutputTokensChat,
		}

	case DiagnosisRequest:
		instruction := fmt.Sprintf(diagnosisInstructionFmt, r.Strain, r.Method, r.Experience)
		text := instruction
		if r.Prompt != "" {
			text += "\n\nGrower's note: " + r.Prompt
		}
		return &Composed{
			Model:             pickModel(r.Model, c.diagnosisModel),
			SystemInstruction: instruction,
			Parts: []gemini.Part{
				{Text: text},
				{InlineData: &gemini.InlineData{MimeType: "image/jpeg", Data: r.Image}},
			},
			WantJSON:        true,
			MaxOutputTokens: maxOutputTokensDiagnosis,
		}

	case InsightRequest:
		return &Composed{
			Model:             pickModel(r.Model, c.chatModel),
			SystemInstruction: insightInstruction,
			Parts:             []gemini.Part{{Text: r.Prompt}},
			MaxOutputTokens:   maxOutputTokensChat,
		}

	default:
		// Unreachable: ParseRequest only produces the variants above.
		return nil
	}
}

// GenerateRequest translates the composed form into the provider wire
// request, applying the fixed generation parameters and, for
// conversational traffic, the safety thresholds.
func (comp *Composed) GenerateRequest() *gemini.GenerateRequest {
	temperature := 0.7
	topP := 0.95
	topK := 40

	req := &gemini.GenerateRequest{
		Contents: append(comp.History, gemini.Content{Role: "user", Parts: comp.Parts}),
		GenerationConfig: &gemini.GenerationConfig{
			Temperature:     &temperature,
			TopP:            &topP,
			TopK:            &topK,
			MaxOutputTokens: comp.MaxOutputTokens,
		},
	}
	if comp.SystemInstruction != "" {
		req.SystemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: comp.SystemInstruction}}}
	}
	if comp.WantJSON {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}
	if comp.Conversational {
		req.SafetySettings = gemini.DefaultSafetySettings()
	}
	return req
}

func historyContents(turns []Turn) []gemini.Content {
	if len(turns) == 0 {
		return nil
	}
	contents := make([]gemini.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, gemini.Content{
			Role:  role,
			Parts: []gemini.Part{{Text: t.Content}},
		})
	}
	return contents
}

func pickModel(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}
