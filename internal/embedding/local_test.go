package embedding

import (
	"context"
	"testing"
)

func TestLocalEmbedderDeterministic(t *testing.T) {
	e := NewLocalEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Daily team sync")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := e.Embed(ctx, "Daily team sync")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(a) != defaultLocalDim {
		t.Fatalf("len(vec) = %d, want %d", len(a), defaultLocalDim)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestLocalEmbedderSharedTokensScoreHigher(t *testing.T) {
	e := NewLocalEmbedder(0)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "team sync meeting")
	near, _ := e.Embed(ctx, "daily team sync")
	far, _ := e.Embed(ctx, "buy groceries")

	if dot(query, near) <= dot(query, far) {
		t.Fatalf("overlapping text scored %v, disjoint text %v; want overlap higher",
			dot(query, near), dot(query, far))
	}
}

func TestLocalEmbedderNormalized(t *testing.T) {
	e := NewLocalEmbedder(0)
	vec, err := e.Embed(context.Background(), "fix bugs in compliance module")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("squared norm = %v, want 1", sum)
	}
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
