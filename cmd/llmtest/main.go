package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abbotsfordroad/cafe-ai-platform/internal/llm"
)

// Smoke test for the configured model providers. Run locally with a .env
// file; it sends one short café conversation to each provider that has
// credentials and prints latency and token usage.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req := llm.Request{
		System: []string{
			"You are Logan, a friendly wholesale coffee specialist. Keep responses brief.",
		},
		Messages: []llm.ChatMessage{
			{Role: llm.RoleUser, Content: "Hi, I'm opening a cafe in Brooklyn. Do you roast locally?"},
			{Role: llm.RoleAssistant, Content: "Congrats on the new cafe! Yes, we roast in New York. How soon are you opening?"},
			{Role: llm.RoleUser, Content: "Hopefully in about two months. What blends would you suggest for espresso?"},
		},
		MaxTokens:   200,
		Temperature: 0.7,
	}

	divider := strings.Repeat("=", 60)
	fmt.Println(divider)
	fmt.Println("Model Provider Test")
	fmt.Println(divider)

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		fmt.Println("\n[1] Testing OpenAI...")
		client, err := llm.NewOpenAIClientFromKey(key, "gpt-4o")
		if err != nil {
			fmt.Printf("    failed to create OpenAI client: %v\n", err)
		} else {
			runTurn(ctx, client, req)
		}
	} else {
		fmt.Println("\n[1] Skipping OpenAI test (OPENAI_API_KEY not set)")
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		fmt.Println("\n[2] Testing Gemini fallback...")
		client, err := llm.NewGeminiClient(ctx, key, "gemini-1.5-flash")
		if err != nil {
			fmt.Printf("    failed to create Gemini client: %v\n", err)
		} else {
			runTurn(ctx, client, req)
		}
	} else {
		fmt.Println("\n[2] Skipping Gemini test (GEMINI_API_KEY not set)")
	}

	fmt.Println("\n" + divider)
	fmt.Println("If both providers responded, the fallback chain is healthy.")
	fmt.Println("The fallback passes the full conversation history, so Gemini")
	fmt.Println("continues the thread without repeating itself.")
}

func runTurn(ctx context.Context, client llm.Client, req llm.Request) {
	start := time.Now()
	resp, err := client.Complete(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("    error: %v\n", err)
		return
	}
	fmt.Printf("    response (%v):\n", elapsed.Round(time.Millisecond))
	fmt.Printf("    %s\n", resp.Text)
	fmt.Printf("    tokens: in=%d, out=%d\n", resp.Usage.InputTokens, resp.Usage.OutputTokens)
}
