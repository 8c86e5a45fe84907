package tts

import (
	"context"
	"errors"
	"net/http"
)

// ErrProviderNotFound is returned when a provider id does not resolve to a
// registered backend.
var ErrProviderNotFound = errors.New("tts provider not found")

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// SynthesisRequest is one chunk's worth of work for a backend.
type SynthesisRequest struct {
	Text     string
	Voice    string
	Language string

	// OutputPath receives the synthesized audio bytes.
	OutputPath string

	// Accelerate asks for hardware acceleration. Best effort: backends
	// without it ignore the hint.
	Accelerate bool
}

// Provider is the capability contract every synthesis backend satisfies.
//
// Voices and Languages fail open: on backend errors implementations return
// a fixed fallback list instead of propagating, so presentation layers
// always have something to offer. Languages may be cached per process.
type Provider interface {
	Voices(ctx context.Context, language string) []string
	Languages(ctx context.Context) []string
	Synthesize(ctx context.Context, req *SynthesisRequest) error
}

// ProviderInfo identifies a registered backend for presentation layers.
type ProviderInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry binds a provider id and display name to an implementation.
type Entry struct {
	ID       string
	Name     string
	Provider Provider
}

// Registry is an immutable id → backend mapping, built once at process
// start and passed explicitly to whoever needs to resolve providers.
type Registry struct {
	providers map[string]Provider
	infos     []ProviderInfo
}

func NewRegistry(entries ...Entry) *Registry {
	reg := &Registry{
		providers: make(map[string]Provider, len(entries)),
		infos:     make([]ProviderInfo, 0, len(entries)),
	}

	for _, e := range entries {
		reg.providers[e.ID] = e.Provider
		reg.infos = append(reg.infos, ProviderInfo{ID: e.ID, Name: e.Name})
	}

	return reg
}

func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.providers[id]

	return p, ok
}

// List enumerates registered providers in registration order.
func (r *Registry) List() []ProviderInfo {
	infos := make([]ProviderInfo, len(r.infos))
	copy(infos, r.infos)

	return infos
}
