package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/dte-sync/internal/infrastructure/sii"
)

func TestArtifactCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewArtifactCache(time.Minute)
	key := "t1|76795561-8|39|100|pdf"

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	c.Set(ctx, key, &sii.ArtifactPayload{Content: []byte("%PDF"), ContentType: "application/pdf"})
	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "%PDF", string(got.Content))

	c.Set(ctx, "otra", nil)
	_, ok = c.Get(ctx, "otra")
	assert.False(t, ok, "un payload nil no se guarda")
}

func TestArtifactCache_Vence(t *testing.T) {
	ctx := context.Background()
	c := NewArtifactCache(20 * time.Millisecond)
	c.Set(ctx, "k", &sii.ArtifactPayload{Content: []byte("x")})
	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
