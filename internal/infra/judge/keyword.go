package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
)

// fullLengthWords is the answer length below which the score is scaled down.
const fullLengthWords = 8

// KeywordJudge grades by keyword coverage and answer length. It needs no network access and
// backs local runs and tests.
type KeywordJudge struct{}

// Judge returns the share of keywords mentioned in the answer, scaled down
// for answers shorter than fullLengthWords. Without keywords it falls back
// to the share of reference answer words present.
func (KeywordJudge) Judge(_ context.Context, req evaluation.JudgeRequest) (evaluation.Judgment, error) {
	answer := strings.ToLower(req.Answer)
	if strings.TrimSpace(answer) == "" {
		return evaluation.Judgment{Score: 0, Feedback: "empty answer"}, nil
	}
	terms := req.Keywords
	if len(terms) == 0 {
		terms = significantWords(req.ReferenceAnswer)
	}
	if len(terms) == 0 {
		return evaluation.Judgment{Score: 0.5, Feedback: "no reference terms to compare"}, nil
	}
	var hit int
	var missing []string
	for _, term := range terms {
		if strings.Contains(answer, strings.ToLower(strings.TrimSpace(term))) {
			hit++
			continue
		}
		missing = append(missing, term)
	}
	score := float64(hit) / float64(len(terms))
	if words := len(strings.Fields(answer)); words < fullLengthWords {
		score *= float64(words) / fullLengthWords
	}
	feedback := fmt.Sprintf("covered %d of %d expected terms", hit, len(terms))
	if len(missing) > 0 && len(missing) <= 5 {
		feedback += "; missing: " + strings.Join(missing, ", ")
	}
	return evaluation.Judgment{Score: score, Feedback: feedback}, nil
}

func significantWords(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if len(w) < 5 {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

var _ evaluation.Judge = KeywordJudge{}
