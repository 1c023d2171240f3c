// Package fallback provides the guaranteed-success local responder used
// when every adapter in the cascade fails. Responses are deterministic and
// content-aware: a handful of message categories get a tailored canned
// answer, everything else gets a generic acknowledgment echoing the input.
// This path never fails and never returns empty content, so the gateway can
// always answer with something rather than an error page.
package fallback

import (
	"encoding/base64"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/booomerangs/relay/pkg/adapter"
)

// AdapterName is the adapter name reported for fallback results.
const AdapterName = "fallback"

// ModelName is the model identifier reported for fallback results.
const ModelName = "local-fallback"

var (
	greetingRe     = regexp.MustCompile(`(?i)\b(hello|hi|hey|good (morning|afternoon)|привет|здравствуй)`)
	howAreYouRe    = regexp.MustCompile(`(?i)(how are you|как дела)`)
	capabilitiesRe = regexp.MustCompile(`(?i)(what can you do|capabilities|help me|что ты умеешь|возможности)`)
	aboutRe        = regexp.MustCompile(`(?i)(who are you|about you|tell me about yourself|кто ты|расскажи о себе)`)
	timeRe         = regexp.MustCompile(`(?i)\b(what time|current time|today'?s date|который час|какое сегодня число)`)
	codeRe         = regexp.MustCompile(`(?i)\b(code|program|javascript|python|golang|программирован)`)
)

// Responder produces canned text and image results.
type Responder struct {
	now func() time.Time
}

// New creates a Responder using the system clock.
func New() *Responder {
	return &Responder{now: time.Now}
}

// NewWithClock creates a Responder with an injected clock for tests.
func NewWithClock(now func() time.Time) *Responder {
	return &Responder{now: now}
}

// Text returns the canned response for a chat message. The result always
// carries non-empty content.
func (r *Responder) Text(message string) *adapter.Result {
	return &adapter.Result{Content: r.textContent(message), Model: ModelName}
}

func (r *Responder) textContent(message string) string {
	switch {
	case greetingRe.MatchString(message):
		return "Hello! I'm the assistant's built-in responder. The external AI providers are " +
			"unavailable right now, but I can still help with basic questions. What would you like to know?"

	case howAreYouRe.MatchString(message):
		return "All good here! The gateway itself is healthy; only the external AI providers are " +
			"temporarily unreachable. Your message has been received and the providers will be retried " +
			"on your next request."

	case capabilitiesRe.MatchString(message):
		return "Normally I relay your messages to one of several AI providers and stream back the best " +
			"answer. Right now all of them are unavailable, so I'm answering locally. You can retry in a " +
			"moment, pin a specific provider, or check /providers for current availability."

	case aboutRe.MatchString(message):
		return "I'm a multi-provider AI gateway: I try each configured provider in priority order and " +
			"return the first good answer. When every provider fails, like right now, I fall back to this " +
			"local responder so you never hit a dead end."

	case timeRe.MatchString(message):
		return fmt.Sprintf("By my server clock it is %s. Note this is server time and may differ from yours.",
			r.now().Format("15:04 on Monday, 2 January 2006"))

	case codeRe.MatchString(message):
		return "I can't reach an AI provider to help with code right now. For quick reference: the Go " +
			"standard library documentation lives at pkg.go.dev, and most language ecosystems have " +
			"similar official references. Please retry shortly for a proper answer."

	default:
		return fmt.Sprintf("I received your message: %q. All external AI providers are temporarily "+
			"unavailable, so this is a locally generated acknowledgment. Please try again in a moment; "+
			"providers are re-attempted on every request.", truncate(message, 140))
	}
}

// Image returns a deterministic placeholder image for a prompt, rendered as
// an inline SVG data URI so it needs no network or storage.
func (r *Responder) Image(prompt string) *adapter.Result {
	label := truncate(strings.TrimSpace(prompt), 60)
	svg := fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="512" height="512" viewBox="0 0 512 512">`+
			`<rect width="512" height="512" fill="#1e293b"/>`+
			`<text x="256" y="240" text-anchor="middle" fill="#e2e8f0" font-family="sans-serif" font-size="20">image unavailable</text>`+
			`<text x="256" y="280" text-anchor="middle" fill="#94a3b8" font-family="sans-serif" font-size="14">%s</text>`+
			`</svg>`,
		html.EscapeString(label))

	return &adapter.Result{
		Content: "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg)),
		Model:   ModelName,
	}
}

// truncate limits s to max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
