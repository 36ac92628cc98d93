package evaluation

import "time"

// Report is the per-question breakdown of an interview evaluation.
type Report struct {
	Interview   Interview    `json:"interview"`
	Job         JobRef       `json:"job"`
	Candidate   CandidateRef `json:"candidate"`
	Items       []ReportItem `json:"items"`
	Summary     Summary      `json:"summary"`
	GeneratedAt time.Time    `json:"generatedAt"`
}

// ReportItem pairs an approved question with the candidate's answer, if any.
type ReportItem struct {
	QuestionID int64         `json:"questionId"`
	Question   string        `json:"question"`
	AnswerID   *int64        `json:"answerId,omitempty"`
	Answer     string        `json:"answer,omitempty"`
	Similarity *float64      `json:"similarity"`
	Judgment   *float64      `json:"judgment"`
	Score      *float64      `json:"score"`
	Feedback   string        `json:"feedback,omitempty"`
	Status     ScoringStatus `json:"status"`
}

func buildReport(iv Interview, job JobRef, cand CandidateRef, questions []Question, answers []Answer, now time.Time) Report {
	byQuestion := make(map[int64]Answer, len(answers))
	for _, a := range answers {
		cur, ok := byQuestion[a.QuestionID]
		if !ok || betterAnswer(a, cur) {
			byQuestion[a.QuestionID] = a
		}
	}
	items := make([]ReportItem, 0, len(questions))
	for _, q := range questions {
		if !q.Approved {
			continue
		}
		item := ReportItem{QuestionID: q.ID, Question: q.Text, Status: ScoringPending}
		if a, ok := byQuestion[q.ID]; ok {
			id := a.ID
			item.AnswerID = &id
			item.Answer = a.Text
			item.Similarity = a.Similarity
			item.Judgment = a.Judgment
			item.Score = a.Score
			item.Feedback = a.Feedback
			item.Status = a.Status
		}
		items = append(items, item)
	}
	return Report{
		Interview:   iv,
		Job:         job,
		Candidate:   cand,
		Items:       items,
		Summary:     Summarize(questions, answers),
		GeneratedAt: now,
	}
}

// betterAnswer prefers fully scored answers, then higher scores.
func betterAnswer(a, b Answer) bool {
	if (a.Status == ScoringScored) != (b.Status == ScoringScored) {
		return a.Status == ScoringScored
	}
	if a.Score == nil || b.Score == nil {
		return a.Score != nil
	}
	return *a.Score > *b.Score
}
