package model

// ErrorType classifies an annotated error in the essay.
type ErrorType string

const (
	ErrorGrammar     ErrorType = "Grammar"
	ErrorVocabulary  ErrorType = "Vocabulary"
	ErrorSpelling    ErrorType = "Spelling"
	ErrorPunctuation ErrorType = "Punctuation"
)

// Valid reports whether t is a known annotation type.
func (t ErrorType) Valid() bool {
	switch t {
	case ErrorGrammar, ErrorVocabulary, ErrorSpelling, ErrorPunctuation:
		return true
	}
	return false
}

// CriterionFeedback is the examiner's verdict on a single criterion.
type CriterionFeedback struct {
	Band          float64 `json:"band"`
	Label         string  `json:"label"`
	Feedback      string  `json:"feedback"`
	BandRationale string  `json:"bandRationale"`
}

// CriteriaFeedback holds the four criterion verdicts.
type CriteriaFeedback struct {
	TR  CriterionFeedback `json:"TR"`
	CC  CriterionFeedback `json:"CC"`
	LR  CriterionFeedback `json:"LR"`
	GRA CriterionFeedback `json:"GRA"`
}

// Scores flattens the verdicts into a band snapshot.
func (c CriteriaFeedback) Scores() CriteriaScores {
	return CriteriaScores{TR: c.TR.Band, CC: c.CC.Band, LR: c.LR.Band, GRA: c.GRA.Band}
}

// ErrorAnnotation quotes a mistake from the essay with its correction.
type ErrorAnnotation struct {
	Quote      string    `json:"quote"`
	Type       ErrorType `json:"type"`
	Issue      string    `json:"issue"`
	Correction string    `json:"correction"`
}

// VocabularyHighlights lists effective and problematic lexis.
type VocabularyHighlights struct {
	Effective   []string `json:"effective"`
	Problematic []string `json:"problematic"`
}

// ExaminerFeedback is the structured verdict returned by the marking oracle.
type ExaminerFeedback struct {
	TaskType             string               `json:"taskType"`
	WordCount            int                  `json:"wordCount"`
	WordCountNote        string               `json:"wordCountNote"`
	CriteriaScores       CriteriaFeedback     `json:"criteriaScores"`
	OverallBand          float64              `json:"overallBand"`
	ExaminerSummary      string               `json:"examinerSummary"`
	TaskSpecificFeedback string               `json:"taskSpecificFeedback"`
	PriorityImprovements []string             `json:"priorityImprovements"`
	VocabularyHighlights VocabularyHighlights `json:"vocabularyHighlights"`
	ErrorAnnotations     []ErrorAnnotation    `json:"errorAnnotations"`
	ModelParagraph       string               `json:"modelParagraph"`
	OriginalParagraph    string               `json:"originalParagraph"`
	ComparativeLevel     string               `json:"comparativeLevel"`
}
