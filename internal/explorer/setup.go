// Package explorer is the HTTP surface of the pavement explorer.
package explorer

import (
	"github.com/pavelength/pavelength/internal/artifact"
	"github.com/pavelength/pavelength/internal/loader"
	"github.com/pavelength/pavelength/internal/schema"
	"github.com/pavelength/pavelength/internal/session"
)

// Handler serves every explorer route.
type Handler struct {
	Sessions  *session.Store
	Registry  *schema.Registry
	Loader    loader.Loader
	Artifacts artifact.Store
	// MaxUpload bounds the uploaded archive in bytes.
	MaxUpload int64
	// AllowedOrigins gates browser websocket connections.
	AllowedOrigins []string
}

// DefaultMaxUpload is used when MaxUpload is not positive.
const DefaultMaxUpload = 200 << 20

func (h *Handler) maxUpload() int64 {
	if h.MaxUpload > 0 {
		return h.MaxUpload
	}
	return DefaultMaxUpload
}

func (h *Handler) artifacts() artifact.Store {
	if h.Artifacts == nil {
		return artifact.Nop{}
	}
	return h.Artifacts
}
