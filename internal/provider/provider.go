// Package provider defines the AI backends a conversion job can be routed to.
package provider

import (
	"fmt"
	"strings"
)

// ID identifies an AI provider understood by the conversion backend.
type ID string

// Provider IDs
//
// | Provider          | ID        |
// |-------------------|-----------|
// | Google Gemini     | gemini    |
// | OpenAI GPT        | openai    |
// | Anthropic Claude  | anthropic |
// | xAI Grok          | grok      |
const (
	Gemini    ID = "gemini"
	OpenAI    ID = "openai"
	Anthropic ID = "anthropic"
	Grok      ID = "grok"
)

// Default is the provider used when none is configured.
const Default = Gemini

var known = []ID{Gemini, OpenAI, Anthropic, Grok}

var labels = map[ID]string{
	Gemini:    "Google Gemini",
	OpenAI:    "OpenAI GPT",
	Anthropic: "Anthropic Claude",
	Grok:      "xAI Grok",
}

// UnknownError is returned by Parse for a provider outside the known set.
type UnknownError struct {
	Value string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown provider %q (expected one of %s)", e.Value, strings.Join(Names(), ", "))
}

// All returns the known providers in display order.
func All() []ID {
	out := make([]ID, len(known))
	copy(out, known)
	return out
}

// Names returns the known provider IDs as strings.
func Names() []string {
	out := make([]string, len(known))
	for i, id := range known {
		out[i] = string(id)
	}
	return out
}

// Parse normalizes s and checks it against the known set.
func Parse(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", &UnknownError{Value: s}
	}
	return id, nil
}

// Valid reports whether id is one of the known providers.
func (id ID) Valid() bool {
	_, ok := labels[id]
	return ok
}

// Label returns the human-readable provider name.
func (id ID) Label() string {
	if l, ok := labels[id]; ok {
		return l
	}
	return string(id)
}

func (id ID) String() string { return string(id) }
