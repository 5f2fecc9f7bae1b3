package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type KnowledgeFile struct {
	Name      string     `json:"name"`
	Documents []Document `json:"documents"`
}

type Document struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"content"`
}

type KnowledgeRequest struct {
	Documents []string `json:"documents"`
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run scripts/seed-knowledge.go <knowledge-file.json>")
		fmt.Println("Example: go run scripts/seed-knowledge.go testdata/sample-knowledge.json")
		os.Exit(1)
	}

	apiURL := os.Getenv("API_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080"
	}

	secret := os.Getenv("ADMIN_JWT_SECRET")
	if secret == "" {
		fmt.Println("❌ ADMIN_JWT_SECRET environment variable not set")
		os.Exit(1)
	}
	token, err := adminToken(secret)
	if err != nil {
		fmt.Printf("❌ Error signing admin token: %v\n", err)
		os.Exit(1)
	}

	knowledgeFile := os.Args[1]

	fmt.Printf("🌱 Seeding Knowledge Base\n")
	fmt.Printf("============================\n")
	fmt.Printf("API URL: %s\n", apiURL)
	fmt.Printf("Knowledge file: %s\n\n", knowledgeFile)

	data, err := os.ReadFile(knowledgeFile)
	if err != nil {
		fmt.Printf("❌ Error reading file: %v\n", err)
		os.Exit(1)
	}

	var knowledge KnowledgeFile
	if err := json.Unmarshal(data, &knowledge); err != nil {
		fmt.Printf("❌ Error parsing JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Corpus: %s\n", knowledge.Name)
	fmt.Printf("Documents to upload: %d\n\n", len(knowledge.Documents))

	// Format: "Title\n\nContent"
	docs := make([]string, len(knowledge.Documents))
	for i, doc := range knowledge.Documents {
		docs[i] = fmt.Sprintf("%s\n\n%s", doc.Title, doc.Content)
	}

	const batchSize = 20
	totalBatches := (len(docs) + batchSize - 1) / batchSize

	ctx := context.Background()
	client := &http.Client{Timeout: 30 * time.Second}

	for i := 0; i < len(docs); i += batchSize {
		end := i + batchSize
		if end > len(docs) {
			end = len(docs)
		}

		batch := docs[i:end]
		batchNum := (i / batchSize) + 1

		fmt.Printf("📦 Batch %d/%d: Uploading %d documents...\n", batchNum, totalBatches, len(batch))

		payload, err := json.Marshal(KnowledgeRequest{Documents: batch})
		if err != nil {
			fmt.Printf("   ❌ Error marshaling request: %v\n", err)
			continue
		}

		url := apiURL + "/admin/knowledge"
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			fmt.Printf("   ❌ Error creating request: %v\n", err)
			continue
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(httpReq)
		if err != nil {
			fmt.Printf("   ❌ Error sending request: %v\n", err)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			var result map[string]interface{}
			if err := json.Unmarshal(body, &result); err == nil {
				fmt.Printf("   ✅ Success! Total documents: %v\n", result["documents"])
			} else {
				fmt.Printf("   ✅ Success! (status code: %d)\n", resp.StatusCode)
			}
		} else {
			fmt.Printf("   ❌ Failed (status %d): %s\n", resp.StatusCode, string(body))
		}

		if batchNum < totalBatches {
			time.Sleep(500 * time.Millisecond)
		}
	}

	fmt.Printf("\n✅ Knowledge seeding complete!\n")
	fmt.Printf("\n📝 Next steps:\n")
	fmt.Printf("  1. Test retrieval: curl -H \"Authorization: Bearer $TOKEN\" '%s/admin/knowledge/search?q=espresso+blends'\n", apiURL)
	fmt.Printf("  2. Start a chat: curl %s/chat -d '{\"message\":\"What blends do you roast?\"}'\n", apiURL)
}

func adminToken(secret string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   "seed-knowledge",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
