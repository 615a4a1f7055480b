package genos

import (
	"context"
	"hash/fnv"
	"math/rand"
)

const defaultMockDimensionsConstant = 1024

// MockEmbedder fabricates embeddings without a server. Vectors are seeded
// by sequence content, so identical sequences embed identically and
// repeated runs agree.
type MockEmbedder struct {
	// Dimensions is the fabricated vector length, 1024 when zero.
	Dimensions int
}

// Embed returns a deterministic unit-length vector for the sequence.
func (embedder MockEmbedder) Embed(_ context.Context, sequence string) (Vector, error) {
	dimensions := embedder.Dimensions
	if dimensions <= 0 {
		dimensions = defaultMockDimensionsConstant
	}

	sequenceHash := fnv.New64a()
	sequenceHash.Write([]byte(sequence))
	randomSource := rand.New(rand.NewSource(int64(sequenceHash.Sum64())))

	fabricated := make(Vector, dimensions)
	for componentIndex := range fabricated {
		fabricated[componentIndex] = randomSource.Float64()
	}
	return fabricated.Normalized(), nil
}
