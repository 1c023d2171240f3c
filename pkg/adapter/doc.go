// Package adapter defines the uniform interface for external AI providers.
// Each adapter wraps one backend (an OpenAI-compatible chat endpoint, a
// Stable Diffusion WebUI, an image URL service) and handles its own protocol
// and response normalization internally, so the dispatcher never branches on
// provider identity. New providers are added by writing one adapter with one
// extraction function, not by touching dispatch logic.
package adapter
