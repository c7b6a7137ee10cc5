package providers

import (
	"net/http"
	"os"

	"github.com/habitix/habitix/llm"
)

// geminiBaseURL is Google's OpenAI-compatibility endpoint for Gemini.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// GeminiProvider talks to Gemini through Google's OpenAI-compatible
// endpoint, so request/response handling is shared with OpenAIProvider.
type GeminiProvider struct {
	OpenAIProvider // Embed for shared request/response format
}

func init() {
	llm.RegisterProvider(&GeminiProvider{})
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// BuildURL constructs the Gemini chat completions endpoint.
func (g *GeminiProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return chatCompletionsURL(baseURL)
}

// SetHeaders adds Gemini authentication headers.
func (g *GeminiProvider) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}
