// Package main implements a mock LLM server for local development.
// It serves OpenAI-compatible /v1/chat/completions responses: a canned
// roadmap for prompts that ask for one, and a canned coach reply for
// everything else. This lets the service run without an API key or a
// local model.
//
// Usage:
//
//	mock-llm -port 11434
//
// Point an ollama-provider endpoint at http://localhost:<port>/v1.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

const roadmapFixture = `[
  {"dayNumber": 1, "tasks": [
    {"title": "Write down why this goal matters to you"},
    {"title": "Block out your practice time in a calendar"},
    {"title": "Gather the materials you need"}
  ]},
  {"dayNumber": 2, "tasks": [
    {"title": "Complete your first focused practice session"},
    {"title": "Note one thing that was harder than expected"}
  ]},
  {"dayNumber": 3, "tasks": [
    {"title": "Review yesterday's notes"},
    {"title": "Complete a second practice session"},
    {"title": "Tell someone about your progress"}
  ]}
]`

const coachFixture = "That's a great question. Break the work into the smallest " +
	"step you can finish today, do that step, and let momentum handle the rest. " +
	"You've already shown up, which is the hardest part."

type server struct {
	calls atomic.Int64
}

// isRoadmapPrompt detects roadmap generation requests by their ask for
// a JSON array of days.
func isRoadmapPrompt(messages []chatMessage) bool {
	for _, m := range messages {
		if strings.Contains(m.Content, "JSON array") && strings.Contains(m.Content, "dayNumber") {
			return true
		}
	}
	return false
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	content := coachFixture
	if isRoadmapPrompt(req.Messages) {
		content = roadmapFixture
	}

	n := s.calls.Add(1)
	log.Printf("call %d: model=%s messages=%d roadmap=%v",
		n, req.Model, len(req.Messages), content == roadmapFixture)

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", n),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{PromptTokens: 50, CompletionTokens: 100, TotalTokens: 150},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func main() {
	port := flag.Int("port", 11434, "Port to listen on")
	flag.Parse()

	s := &server{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock-llm listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}
