// Package openaicompat implements a text adapter for OpenAI-compatible chat
// endpoints. The free providers the gateway fronts all speak some dialect of
// the Chat Completions shape, but the response envelopes differ wildly
// (choices[0].message.content vs. response vs. output vs. a raw string body),
// so the adapter owns a tolerant extraction function that normalizes every
// known shape into a single Result. Named adapters (qwen, freechat, ...) are
// configuration-driven instances of this one implementation.
package openaicompat
