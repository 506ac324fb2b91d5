// Package main provides a standalone health probe for the Cookbook backend.
// It is intended for Docker HEALTHCHECK directives, orchestrator probes, and
// quick operator checks against a running API server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
	exitCodeError   = 2
)

// probeConfig holds command-line configuration
type probeConfig struct {
	URL          string
	Probe        string
	Timeout      time.Duration
	Verbose      bool
	OutputFormat string
	Expect       string
	RetryCount   int
	RetryDelay   time.Duration
}

func main() {
	os.Exit(run(parseFlags()))
}

// parseFlags parses command-line flags
func parseFlags() probeConfig {
	cfg := probeConfig{}

	flag.StringVar(&cfg.URL, "url", "", "Full health endpoint URL (e.g., http://localhost:8080/health)")
	flag.StringVar(&cfg.Probe, "probe", "health", "Probe when -url is empty: health, live, ready")
	flag.DurationVar(&cfg.Timeout, "timeout", 10*time.Second, "Request timeout")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Verbose output")
	flag.StringVar(&cfg.OutputFormat, "format", "text", "Output format: text, json, compact")
	flag.StringVar(&cfg.Expect, "expect", "healthy", "Expected status: healthy, degraded")
	flag.IntVar(&cfg.RetryCount, "retry", 0, "Number of retries on failure")
	flag.DurationVar(&cfg.RetryDelay, "retry-delay", 1*time.Second, "Delay between retries")

	flag.Parse()

	if cfg.URL == "" {
		cfg.URL = detectHealthURL(cfg.Probe)
	}

	return cfg
}

// detectHealthURL builds the probe URL from the environment when no explicit
// URL is given, matching the server's COOKBOOK_ env prefix.
func detectHealthURL(probe string) string {
	if url := os.Getenv("COOKBOOK_HEALTH_URL"); url != "" {
		return url
	}

	host := os.Getenv("COOKBOOK_SERVER_HOST")
	if host == "" {
		host = "localhost"
	}
	port := os.Getenv("COOKBOOK_SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	return fmt.Sprintf("http://%s:%s%s", host, port, probePath(probe))
}

func probePath(probe string) string {
	switch probe {
	case "live":
		return "/health/live"
	case "ready":
		return "/health/ready"
	default:
		return "/health"
	}
}

// run performs the probe with retries and returns the process exit code.
func run(cfg probeConfig) int {
	client := &http.Client{Timeout: cfg.Timeout}

	var lastError error
	for attempt := 0; attempt <= cfg.RetryCount; attempt++ {
		if attempt > 0 {
			if cfg.Verbose {
				fmt.Printf("Retrying in %v... (attempt %d/%d)\n", cfg.RetryDelay, attempt, cfg.RetryCount)
			}
			time.Sleep(cfg.RetryDelay)
		}

		resp, err := client.Get(cfg.URL)
		if err != nil {
			lastError = err
			if cfg.Verbose {
				fmt.Printf("Request failed: %v\n", err)
			}
			continue
		}

		return handleResponse(resp, cfg)
	}

	fmt.Printf("Health check failed after %d attempts: %v\n", cfg.RetryCount+1, lastError)
	return exitCodeError
}

// handleResponse decodes the endpoint payload and maps it to an exit code
func handleResponse(resp *http.Response, cfg probeConfig) int {
	defer resp.Body.Close()

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		fmt.Printf("Failed to decode response: %v\n", err)
		return exitCodeError
	}

	outputResult(payload, cfg)

	status, _ := payload["status"].(string)
	switch status {
	case "healthy", "alive", "ready":
		return exitCodeSuccess
	case "degraded":
		// Degraded passes only when the operator asked for it.
		if cfg.Expect == "degraded" {
			return exitCodeSuccess
		}
		return exitCodeFailure
	default:
		return exitCodeFailure
	}
}

// outputResult prints the payload in the configured format
func outputResult(payload map[string]interface{}, cfg probeConfig) {
	switch cfg.OutputFormat {
	case "json":
		data, _ := json.MarshalIndent(payload, "", "  ")
		fmt.Println(string(data))
	case "compact":
		data, _ := json.Marshal(payload)
		fmt.Println(string(data))
	default:
		outputText(payload, cfg.Verbose)
	}
}

// outputText prints a human-readable summary of the health payload
func outputText(payload map[string]interface{}, verbose bool) {
	if status, ok := payload["status"].(string); ok {
		fmt.Printf("Status: %s\n", status)
	}
	if version, ok := payload["version"].(string); ok {
		fmt.Printf("Version: %s\n", version)
	}

	checks, ok := payload["checks"].([]interface{})
	if !ok || len(checks) == 0 {
		return
	}

	if !verbose {
		fmt.Printf("Checks: %d\n", len(checks))
		return
	}

	fmt.Println("\nChecks:")
	for _, raw := range checks {
		check, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := check["name"].(string)
		status, _ := check["status"].(string)
		fmt.Printf("  %s: %s", name, status)
		if message, ok := check["message"].(string); ok && message != "" {
			fmt.Printf(" (%s)", message)
		}
		fmt.Println()
	}
}
