package models

// PaperAnalysis is the structured result for one uploaded paper. It is never
// mutated after the analyzer returns it.
type PaperAnalysis struct {
	Title          string         `json:"title"`
	Authors        []string       `json:"authors"`
	Citation       Citation       `json:"citation"`
	Objectives     []string       `json:"objectives"`
	ObjectivesEli5 string         `json:"objectivesEli5"`
	Gaps           Gaps           `json:"gaps"`
	Datasets       []string       `json:"datasets"`
	Methodology    Methodology    `json:"methodology"`
	Evaluation     Evaluation     `json:"evaluation"`
	Conclusion     Conclusion     `json:"conclusion"`
	Implementation Implementation `json:"implementation"`
	StudyGuide     StudyGuide     `json:"studyGuide"`
}

type Citation struct {
	Title               string   `json:"title"`
	Authors             []string `json:"authors"`
	PublicationDate     string   `json:"publicationDate"`
	JournalOrConference string   `json:"journalOrConference"`
	Volume              string   `json:"volume,omitempty"`
	Issue               string   `json:"issue,omitempty"`
	Pages               string   `json:"pages,omitempty"`
	DOI                 string   `json:"doi"`
}

type Gaps struct {
	Discovered []string `json:"discovered"`
	Fulfilled  []string `json:"fulfilled"`
}

type Methodology struct {
	ApproachName        string   `json:"approachName"`
	Description         string   `json:"description"`
	KeyAlgorithms       []string `json:"keyAlgorithms"`
	ArchitectureDetails string   `json:"architectureDetails"`
}

type Evaluation struct {
	Metrics        []string `json:"metrics"`
	ResultsSummary string   `json:"resultsSummary"`
}

type Conclusion struct {
	Summary     string   `json:"summary"`
	SummaryEli5 string   `json:"summaryEli5"`
	Drawbacks   []string `json:"drawbacks"`
	FutureWork  []string `json:"futureWork"`
}

type Implementation struct {
	Models      []string `json:"models"`
	CodeSnippet string   `json:"codeSnippet"`
	Steps       []string `json:"steps"`
}

type StudyGuide struct {
	Equations []EquationExplanation `json:"equations"`
	Quiz      []QuizQuestion        `json:"quiz"`
}

// EquationExplanation pairs a raw LaTeX formula with a plain-language reading.
type EquationExplanation struct {
	Name        string     `json:"name"`
	Equation    string     `json:"equation"`
	Description string     `json:"description"`
	Variables   []Variable `json:"variables"`
}

type Variable struct {
	Symbol  string `json:"symbol"`
	Meaning string `json:"meaning"`
}

type QuizQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

// AudioSummary is the text read aloud by the audio overview.
func (a *PaperAnalysis) AudioSummary() string {
	return "Analysis of " + a.Title + ". " + a.ObjectivesEli5 + ". " + a.Conclusion.SummaryEli5
}
