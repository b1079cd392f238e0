package ai

import "google.golang.org/genai"

const analysisPrompt = `You are an expert academic researcher and tutor. Analyze the provided research paper and extract the following structured information:
1. Title and Authors.
2. Citation Metadata: Extract publication date, journal/conference name, and DOI if available.
3. Objectives: What did the paper aim to achieve? Also provide a simplified "Explain Like I'm 5" (ELI5) version.
4. Gaps: What research gaps were identified and which ones did this paper fulfill?
5. Datasets: List all specific datasets used.
6. Methodology: Describe the architecture, algorithms, or specific approach used.
7. Evaluation: Specific metrics used and a summary of the results.
8. Conclusion: A summary of the conclusion (and an ELI5 version), including drawbacks and future work.
9. Implementation Prototype:
   - Identify specific models/libraries (e.g. PyTorch, TensorFlow, Scikit-learn).
   - Generate a Python code snippet that initializes the key model architecture or algorithm described.
   - If no code is in the paper, write a plausible implementation based on the methodology description. Do not leave this empty.
   - List 3-5 implementation steps.
10. Study Guide:
   - Equation De-mystifier: Select the 2-3 most critical mathematical equations from the paper.
     - Name: Give the equation a standard name (e.g. "Attention Mechanism" or "MSE Loss").
     - Equation: Return the full mathematical expression as a raw LaTeX string (e.g. "E = mc^2").
       Do not wrap it in Markdown code blocks and do not use "$" or "$$" delimiters.
     - Description: Explain exactly what the equation calculates and its role in the paper.
     - Variables: Define the key symbols.
   - Socratic Quiz: Generate 3 multiple-choice questions that test understanding of the paper's core contribution.`

// rawAnalysis mirrors the response schema field for field.
type rawAnalysis struct {
	Title                   string        `json:"title"`
	Authors                 []string      `json:"authors"`
	CitationDate            string        `json:"citation_date"`
	CitationJournal         string        `json:"citation_journal"`
	CitationDOI             string        `json:"citation_doi"`
	Objectives              []string      `json:"objectives"`
	ObjectivesEli5          string        `json:"objectives_eli5"`
	GapsDiscovered          []string      `json:"gaps_discovered"`
	GapsFulfilled           []string      `json:"gaps_fulfilled"`
	DatasetsUsed            []string      `json:"datasets_used"`
	MethodologyApproachName string        `json:"methodology_approach_name"`
	MethodologyDescription  string        `json:"methodology_description"`
	MethodologyAlgorithms   []string      `json:"methodology_algorithms"`
	MethodologyArchitecture string        `json:"methodology_architecture"`
	EvaluationMetrics       []string      `json:"evaluation_metrics"`
	EvaluationResults       string        `json:"evaluation_results"`
	ConclusionSummary       string        `json:"conclusion_summary"`
	ConclusionSummaryEli5   string        `json:"conclusion_summary_eli5"`
	ConclusionDrawbacks     []string      `json:"conclusion_drawbacks"`
	ConclusionFutureWork    []string      `json:"conclusion_future_work"`
	ImplementationModels    []string      `json:"implementation_models"`
	ImplementationCode      string        `json:"implementation_code"`
	ImplementationSteps     []string      `json:"implementation_steps"`
	StudyEquations          []rawEquation `json:"study_equations"`
	StudyQuiz               []rawQuiz     `json:"study_quiz"`
}

type rawEquation struct {
	Name        string        `json:"name"`
	Equation    string        `json:"equation"`
	Description string        `json:"description"`
	Variables   []rawVariable `json:"variables"`
}

type rawVariable struct {
	Symbol  string `json:"symbol"`
	Meaning string `json:"meaning"`
}

type rawQuiz struct {
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Explanation  string   `json:"explanation"`
}

func str(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func strList() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
}

func analysisSchema() *genai.Schema {
	variable := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"symbol":  str(""),
			"meaning": str(""),
		},
	}
	equation := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":        str("Name of the equation concept"),
			"equation":    str("The formula in raw LaTeX format. Do NOT use $ delimiters."),
			"description": str("Plain English explanation of the equation"),
			"variables":   {Type: genai.TypeArray, Items: variable},
		},
	}
	quiz := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"question":      str(""),
			"options":       strList(),
			"correct_index": {Type: genai.TypeInteger},
			"explanation":   str(""),
		},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":                     str(""),
			"authors":                   strList(),
			"citation_date":             str("Year or Date of publication"),
			"citation_journal":          str("Journal or Conference name"),
			"citation_doi":              str(""),
			"objectives":                strList(),
			"objectives_eli5":           str("Simplified explanation of objectives for a layperson"),
			"gaps_discovered":           strList(),
			"gaps_fulfilled":            strList(),
			"datasets_used":             strList(),
			"methodology_approach_name": str(""),
			"methodology_description":   str(""),
			"methodology_algorithms":    strList(),
			"methodology_architecture":  str(""),
			"evaluation_metrics":        strList(),
			"evaluation_results":        str(""),
			"conclusion_summary":        str(""),
			"conclusion_summary_eli5":   str("Simplified conclusion for a layperson"),
			"conclusion_drawbacks":      strList(),
			"conclusion_future_work":    strList(),
			"implementation_models":     strList(),
			"implementation_code":       str("Python code snippet. If text lacks code, generate a plausible implementation based on the architecture."),
			"implementation_steps":      strList(),
			"study_equations":           {Type: genai.TypeArray, Items: equation},
			"study_quiz":                {Type: genai.TypeArray, Items: quiz},
		},
		Required: []string{
			"title", "objectives", "methodology_description", "conclusion_summary",
			"study_equations", "study_quiz", "implementation_code",
		},
	}
}
