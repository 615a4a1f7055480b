// Package genos talks to a Genos embedding server and scores variant
// effects from the distance between reference and alternate embeddings.
package genos

import "math"

const (
	cosineComponentWeightConstant     = 0.5
	euclideanComponentWeightConstant  = 0.3
	differenceComponentWeightConstant = 0.2
)

// Vector is an embedding vector.
type Vector []float64

// Norm returns the Euclidean norm.
func (vector Vector) Norm() float64 {
	sumOfSquares := 0.0
	for _, component := range vector {
		sumOfSquares += component * component
	}
	return math.Sqrt(sumOfSquares)
}

// Normalized returns a unit-length copy. Vectors with zero norm are
// returned unchanged.
func (vector Vector) Normalized() Vector {
	norm := vector.Norm()
	normalized := make(Vector, len(vector))
	if norm == 0 {
		copy(normalized, vector)
		return normalized
	}
	for componentIndex, component := range vector {
		normalized[componentIndex] = component / norm
	}
	return normalized
}

// IsZero reports whether every component is zero.
func (vector Vector) IsZero() bool {
	for _, component := range vector {
		if component != 0 {
			return false
		}
	}
	return true
}

// Dot returns the dot product. Components past the shorter vector's
// length contribute nothing.
func Dot(first Vector, second Vector) float64 {
	product := 0.0
	for componentIndex := 0; componentIndex < len(first) && componentIndex < len(second); componentIndex++ {
		product += first[componentIndex] * second[componentIndex]
	}
	return product
}

// EuclideanDistance returns the norm of the component-wise difference.
// Components past the shorter vector's length count as zero.
func EuclideanDistance(first Vector, second Vector) float64 {
	sumOfSquares := 0.0
	for componentIndex := 0; componentIndex < len(first) || componentIndex < len(second); componentIndex++ {
		difference := componentAt(first, componentIndex) - componentAt(second, componentIndex)
		sumOfSquares += difference * difference
	}
	return math.Sqrt(sumOfSquares)
}

// MeanAbsoluteDifference returns the mean of component-wise absolute
// differences, zero when both vectors are empty.
func MeanAbsoluteDifference(first Vector, second Vector) float64 {
	componentCount := len(first)
	if len(second) > componentCount {
		componentCount = len(second)
	}
	if componentCount == 0 {
		return 0
	}
	totalDifference := 0.0
	for componentIndex := 0; componentIndex < componentCount; componentIndex++ {
		totalDifference += math.Abs(componentAt(first, componentIndex) - componentAt(second, componentIndex))
	}
	return totalDifference / float64(componentCount)
}

func componentAt(vector Vector, componentIndex int) float64 {
	if componentIndex >= len(vector) {
		return 0
	}
	return vector[componentIndex]
}

// EffectScores are the distance metrics between a variant's reference and
// alternate embeddings, with a fixed-weight combination of the three.
type EffectScores struct {
	CosineSimilarity    float64 `json:"cosine_similarity"`
	EuclideanDistance   float64 `json:"euclidean_distance"`
	DifferenceMagnitude float64 `json:"diff_magnitude"`
	ImpactScore         float64 `json:"genos_impact_score"`
}

// ComputeEffectScores derives effect scores from a pair of unit-length
// embeddings. Larger distances indicate a larger predicted effect.
func ComputeEffectScores(referenceEmbedding Vector, alternateEmbedding Vector) EffectScores {
	cosineSimilarity := Dot(referenceEmbedding, alternateEmbedding)
	euclideanDistance := EuclideanDistance(referenceEmbedding, alternateEmbedding)
	differenceMagnitude := MeanAbsoluteDifference(referenceEmbedding, alternateEmbedding)

	return EffectScores{
		CosineSimilarity:    cosineSimilarity,
		EuclideanDistance:   euclideanDistance,
		DifferenceMagnitude: differenceMagnitude,
		ImpactScore: (1-cosineSimilarity)*cosineComponentWeightConstant +
			euclideanDistance*euclideanComponentWeightConstant +
			differenceMagnitude*differenceComponentWeightConstant,
	}
}
