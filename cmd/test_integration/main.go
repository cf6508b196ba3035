package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := os.Getenv("RUNNER_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3030"
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting Integration Test...")

	fmt.Println("1. Checking health...")
	if _, ok := sendRequest("GET", baseURL+"/health", nil); !ok {
		fmt.Println("FAILED: Health")
		os.Exit(1)
	}
	fmt.Println("PASSED: Health")

	fmt.Println("2. Listing queries...")
	body, ok := sendRequest("GET", baseURL+"/queries", nil)
	if !ok {
		fmt.Println("FAILED: List queries")
		os.Exit(1)
	}
	var listing struct {
		Queries []struct {
			Index      int    `json:"index"`
			Name       string `json:"name"`
			Parameters []struct {
				Name string `json:"name"`
			} `json:"parameters"`
		} `json:"queries"`
	}
	if err := json.Unmarshal(body, &listing); err != nil || len(listing.Queries) == 0 {
		fmt.Println("FAILED: List queries returned no queries")
		os.Exit(1)
	}
	fmt.Printf("PASSED: List queries (%d)\n", len(listing.Queries))

	// Parameters can be supplied as QUERY_PARAMS='{"start":"users/1"}'.
	params := map[string]any{}
	if raw := os.Getenv("QUERY_PARAMS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			fmt.Printf("FAILED: QUERY_PARAMS is not a JSON object: %v\n", err)
			os.Exit(1)
		}
	}

	first := listing.Queries[0]
	fmt.Printf("3. Executing query %q...\n", first.Name)
	body, ok = sendRequest("POST", fmt.Sprintf("%s/execute/%d", baseURL, first.Index), params)
	if !ok {
		fmt.Println("FAILED: Execute")
		os.Exit(1)
	}
	var result struct {
		Results     []json.RawMessage `json:"results"`
		IsGraph     bool              `json:"is_graph"`
		ExportError json.RawMessage   `json:"export_error"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		fmt.Printf("FAILED: Execute returned invalid JSON: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("PASSED: Execute (%d results, graph=%t)\n", len(result.Results), result.IsGraph)
	if len(result.ExportError) > 0 {
		fmt.Printf("Export reported: %s\n", result.ExportError)
	}
}

func sendRequest(method, url string, payload any) ([]byte, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 2 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return nil, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return nil, false
	}
	return respBody, true
}
