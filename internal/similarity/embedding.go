package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultEmbedTimeout bounds one shared embedder call.
const DefaultEmbedTimeout = 30 * time.Second

// Embedder turns a word into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Embedding scores words by the cosine similarity of their embeddings,
// clamped to [0, 1]. Vectors are cached for the lifetime of the oracle and
// concurrent requests for the same word share one embedder call. The shared
// call is detached from the caller that started it and bounded by Timeout;
// every caller still stops waiting when its own context is done.
type Embedding struct {
	Timeout time.Duration

	embedder Embedder

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string][]float32
}

// NewEmbedding wraps embedder.
func NewEmbedding(embedder Embedder) *Embedding {
	return &Embedding{
		Timeout:  DefaultEmbedTimeout,
		embedder: embedder,
		cache:    make(map[string][]float32),
	}
}

func (e *Embedding) Similarity(ctx context.Context, a, b string) (float64, error) {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0, ErrUnknownWord
	}
	if a == b {
		return 1, nil
	}

	va, err := e.vector(ctx, a)
	if err != nil {
		return 0, err
	}
	vb, err := e.vector(ctx, b)
	if err != nil {
		return 0, err
	}

	return clamp(Cosine(va, vb)), nil
}

// Cached returns the number of cached vectors.
func (e *Embedding) Cached() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}

func (e *Embedding) vector(ctx context.Context, word string) ([]float32, error) {
	e.mu.RLock()
	v, ok := e.cache[word]
	e.mu.RUnlock()
	if ok {
		return v, nil
	}

	ch := e.group.DoChan(word, func() (any, error) {
		e.mu.RLock()
		cached, ok := e.cache[word]
		e.mu.RUnlock()
		if ok {
			return cached, nil
		}

		timeout := e.Timeout
		if timeout <= 0 {
			timeout = DefaultEmbedTimeout
		}
		embedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()

		vec, err := e.embedder.Embed(embedCtx, word)
		if err != nil {
			return nil, fmt.Errorf("embed %q: %w", word, err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("embed %q: %w", word, ErrUnknownWord)
		}

		e.mu.Lock()
		e.cache[word] = vec
		e.mu.Unlock()
		return vec, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}

// Cosine returns the cosine similarity of two vectors, 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
