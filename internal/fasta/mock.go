package fasta

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
)

const nucleotideAlphabetConstant = "ACGT"

// MockSource fabricates sequence windows when no reference genome is
// available. Flanks are seeded by locus, so repeated runs over the same
// variants produce identical sequences.
type MockSource struct{}

// Window returns a fabricated window with the reference and alternate
// alleles spliced between deterministic flanks.
func (MockSource) Window(chromosome string, position int, referenceAllele string, alternateAllele string, windowSize int) (Window, error) {
	if position < 1 {
		return Window{}, fmt.Errorf(invalidPositionTemplateConstant, ErrInvalidPosition, chromosome, position)
	}
	if windowSize < 0 {
		windowSize = 0
	}

	locusHash := fnv.New64a()
	fmt.Fprintf(locusHash, "%s:%d:%s", chromosome, position, referenceAllele)
	randomSource := rand.New(rand.NewSource(int64(locusHash.Sum64())))

	leftFlank := randomBases(randomSource, windowSize)
	rightFlank := randomBases(randomSource, windowSize)

	return Window{
		ReferenceSequence: leftFlank + strings.ToUpper(referenceAllele) + rightFlank,
		AlternateSequence: leftFlank + strings.ToUpper(alternateAllele) + rightFlank,
		ReferenceOffset:   windowSize,
	}, nil
}

func randomBases(randomSource *rand.Rand, count int) string {
	var builder strings.Builder
	builder.Grow(count)
	for index := 0; index < count; index++ {
		builder.WriteByte(nucleotideAlphabetConstant[randomSource.Intn(len(nucleotideAlphabetConstant))])
	}
	return builder.String()
}

// GCContent returns the fraction of G and C bases in a sequence, zero for
// an empty sequence.
func GCContent(sequence string) float64 {
	if len(sequence) == 0 {
		return 0
	}
	gcCount := 0
	for _, base := range strings.ToUpper(sequence) {
		if base == 'G' || base == 'C' {
			gcCount++
		}
	}
	return float64(gcCount) / float64(len(sequence))
}
