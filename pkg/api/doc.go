// Package api defines the wire types and error taxonomy shared by the
// dispatcher, the adapters, and the HTTP transport. All provider-specific
// response shapes are normalized into these types before they leave the
// adapter layer.
package api
