package pipeline

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/saashunter/hunter/internal/model"
)

var similarityParams = levenshtein.NewParams()

// TitleSimilarity returns the normalized edit-distance similarity of two
// titles on a 0-100 scale.
func TitleSimilarity(a, b string) float64 {
	return levenshtein.Similarity(a, b, similarityParams) * 100
}

// Deduplicate collapses near-duplicate records by fuzzy title similarity.
// Records are visited in score-descending order (stable, so input order
// breaks ties), which guarantees the highest-scoring representative of any
// duplicate cluster survives. Similarity strictly above threshold marks a
// duplicate. O(n²) comparisons; fine for batches in the hundreds.
func Deduplicate(records []model.Opportunity, threshold float64) []model.Opportunity {
	if len(records) == 0 {
		return nil
	}

	sorted := make([]model.Opportunity, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	unique := make([]model.Opportunity, 0, len(sorted))
	seenTitles := make([]string, 0, len(sorted))

	for i := range sorted {
		title := strings.ToLower(sorted[i].Title)

		isDuplicate := false
		for _, seen := range seenTitles {
			if TitleSimilarity(title, seen) > threshold {
				isDuplicate = true
				break
			}
		}
		if isDuplicate {
			continue
		}

		unique = append(unique, sorted[i])
		seenTitles = append(seenTitles, title)
	}

	return unique
}
