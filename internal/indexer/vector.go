package indexer

import "math"

// Normalize scales vec to unit L2 length in place. Zero vectors are left unchanged.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

// PassageText is the text embedded for a chunk.
func PassageText(ruleTitle, sectionTitle, content string) string {
	return "passage: " + ruleTitle + " — " + sectionTitle + "\n" + content
}

// QueryText is the text embedded for a user question.
func QueryText(query string) string {
	return "query: " + query
}
