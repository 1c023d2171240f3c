// Command probe attempts each configured adapter exactly once and reports
// the outcome. Useful for checking which upstream providers are reachable
// before starting the gateway, or for debugging a misbehaving cascade.
//
// Usage:
//
//	probe [-config config.yaml] [-message "probe text"]
//
// Exit status is 0 when at least one adapter answered, 1 otherwise.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/booomerangs/relay/pkg/adapter"
	"github.com/booomerangs/relay/pkg/adapter/openaicompat"
	"github.com/booomerangs/relay/pkg/adapter/pollinations"
	"github.com/booomerangs/relay/pkg/adapter/sdwebui"
	"github.com/booomerangs/relay/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	message := flag.String("message", "Reply with the word pong.", "probe payload for text adapters")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	if len(cfg.Adapters) == 0 {
		fmt.Fprintln(os.Stderr, "no adapters configured")
		os.Exit(1)
	}

	var answered int
	for _, ac := range cfg.Adapters {
		outcome := probeAdapter(ac, *message)
		fmt.Println(outcome)
		if outcome.ok {
			answered++
		}
	}

	fmt.Printf("\n%d/%d adapters answered\n", answered, len(cfg.Adapters))
	if answered == 0 {
		os.Exit(1)
	}
}

// result holds one probe outcome for printing.
type result struct {
	name    string
	ok      bool
	detail  string
	elapsed time.Duration
}

func (r result) String() string {
	status := "FAIL"
	if r.ok {
		status = "ok"
	}
	return fmt.Sprintf("%-20s %-4s %8s  %s", r.name, status, r.elapsed.Round(time.Millisecond), r.detail)
}

func probeAdapter(ac config.AdapterConfig, message string) result {
	if ac.RequiresCredential && ac.APIKey == "" {
		return result{name: ac.Name, detail: "skipped: no credential configured"}
	}

	a, err := buildAdapter(ac)
	if err != nil {
		return result{name: ac.Name, detail: "config error: " + err.Error()}
	}
	defer a.Close()

	payload := message
	if ac.Kind == "image" {
		payload = "a lighthouse at dusk"
	}

	timeout := ac.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	res, err := a.Complete(ctx, &adapter.Request{Payload: payload})
	elapsed := time.Since(start)

	if err != nil {
		return result{name: ac.Name, detail: err.Error(), elapsed: elapsed}
	}

	detail := res.Content
	if len(detail) > 60 {
		detail = detail[:60] + "..."
	}
	return result{name: ac.Name, ok: true, detail: detail, elapsed: elapsed}
}

func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	profile := adapter.Profile{
		Priority:           ac.Priority,
		Timeout:            ac.Timeout,
		MaxRetries:         ac.MaxRetries,
		RequiresCredential: ac.RequiresCredential,
	}

	switch ac.Type {
	case "openai-compat":
		return openaicompat.New(openaicompat.Config{
			Name:         ac.Name,
			BaseURL:      ac.BaseURL,
			Path:         ac.Path,
			APIKey:       ac.APIKey,
			Model:        ac.Model,
			Profile:      profile,
			Streaming:    ac.Streaming,
			RejectMarkup: ac.RejectMarkup,
		})
	case "sdwebui":
		return sdwebui.New(sdwebui.Config{
			Name:     ac.Name,
			BaseURL:  ac.BaseURL,
			Profile:  profile,
			Steps:    ac.Steps,
			CFGScale: ac.CFGScale,
		})
	case "pollinations":
		return pollinations.New(pollinations.Config{
			Name:    ac.Name,
			BaseURL: ac.BaseURL,
			Profile: profile,
		}), nil
	default:
		return nil, fmt.Errorf("unknown adapter type %q", ac.Type)
	}
}
