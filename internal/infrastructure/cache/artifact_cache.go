// Package cache memoiza en memoria las representaciones obtenidas por búsqueda en vivo.
package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"

	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
)

// DefaultCleanupInterval cada cuánto se purgan entradas vencidas.
const DefaultCleanupInterval = 15 * time.Minute

// ArtifactCache cache TTL de PDFs/XML indexado por tenant, emisor, tipo, folio y formato.
// Una entrada vencida obliga a una nueva búsqueda en vivo.
type ArtifactCache struct {
	cache *goCache.Cache
}

// NewArtifactCache crea el cache. ttl <= 0 deja las entradas sin vencimiento.
func NewArtifactCache(ttl time.Duration) *ArtifactCache {
	if ttl <= 0 {
		ttl = goCache.NoExpiration
	}
	return &ArtifactCache{cache: goCache.New(ttl, DefaultCleanupInterval)}
}

// Get devuelve la representación si sigue vigente.
func (c *ArtifactCache) Get(_ context.Context, key string) (*sii.ArtifactPayload, bool) {
	v, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	p, ok := v.(*sii.ArtifactPayload)
	return p, ok
}

// Set guarda con el TTL por defecto.
func (c *ArtifactCache) Set(_ context.Context, key string, payload *sii.ArtifactPayload) {
	if payload == nil {
		return
	}
	c.cache.Set(key, payload, goCache.DefaultExpiration)
}
