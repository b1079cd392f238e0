package render

import (
	"paperlens/internal/models"
	"paperlens/internal/upload"
	"paperlens/internal/workspace"
)

const analyzingRefresh = 3

var analysisSteps = []string{
	"Parsing PDF Structure",
	"Extracting Key Objectives",
	"Analyzing Methodology",
	"Generating Study Guide",
}

type TabLink struct {
	ID     workspace.Tab
	Label  string
	Active bool
}

type VariableView struct {
	Index   int
	Symbol  string
	Meaning string
	Active  bool
}

type EquationView struct {
	Index       int
	Name        string
	Equation    string
	Description string
	Zoomed      bool
	Variables   []VariableView
	Active      *VariableView
}

type OptionView struct {
	Index    int
	Text     string
	Selected bool
	Correct  bool
}

type QuizView struct {
	Index       int
	Question    string
	Options     []OptionView
	Answered    bool
	Correct     bool
	Explanation string
}

// Page is everything the templates need for one workspace.
type Page struct {
	Status         workspace.Status
	File           *models.PaperFile
	Analysis       *models.PaperAnalysis
	Error          string
	Notice         string
	CSRFToken      string
	MaxUploadMB    int64
	RefreshSeconds int
	Steps          []string

	Tab           workspace.Tab
	Tabs          []TabLink
	Equations     []EquationView
	Quiz          []QuizView
	Chat          []models.ChatMessage
	CanChat       bool
	ChatFailed    bool
	Audio         workspace.AudioState
	Related       []models.RelatedPaper
	RelatedLoaded bool
}

// NewPage builds the view of ws.
func NewPage(ws *workspace.Workspace, csrfToken string) Page {
	snap := ws.Snapshot()
	p := Page{
		Status:      snap.Status,
		File:        snap.File,
		Analysis:    snap.Analysis,
		Error:       snap.Error,
		Notice:      snap.Notice,
		CSRFToken:   csrfToken,
		MaxUploadMB: upload.MaxFileSize >> 20,
	}
	switch snap.Status {
	case workspace.StatusAnalyzing:
		p.RefreshSeconds = analyzingRefresh
		p.Steps = analysisSteps
	case workspace.StatusSuccess:
		p.fillDashboard(ws)
	}
	return p
}

func (p *Page) fillDashboard(ws *workspace.Workspace) {
	widgets := ws.Widgets()
	p.Tab = widgets.Tab()
	for _, t := range workspace.Tabs {
		p.Tabs = append(p.Tabs, TabLink{ID: t, Label: t.Label(), Active: t == p.Tab})
	}

	for i, eq := range p.Analysis.StudyGuide.Equations {
		active := widgets.ActiveVariable(i)
		view := EquationView{
			Index:       i,
			Name:        eq.Name,
			Equation:    eq.Equation,
			Description: eq.Description,
			Zoomed:      widgets.Zoomed(i),
		}
		for j, v := range eq.Variables {
			view.Variables = append(view.Variables, VariableView{Index: j, Symbol: v.Symbol, Meaning: v.Meaning, Active: j == active})
		}
		if active >= 0 && active < len(view.Variables) {
			view.Active = &view.Variables[active]
		}
		p.Equations = append(p.Equations, view)
	}

	for i, q := range p.Analysis.StudyGuide.Quiz {
		selected, answered := widgets.Answer(i)
		view := QuizView{
			Index:       i,
			Question:    q.Question,
			Answered:    answered,
			Correct:     answered && selected == q.CorrectAnswerIndex,
			Explanation: q.Explanation,
		}
		for j, opt := range q.Options {
			view.Options = append(view.Options, OptionView{
				Index:    j,
				Text:     opt,
				Selected: answered && j == selected,
				Correct:  j == q.CorrectAnswerIndex,
			})
		}
		p.Quiz = append(p.Quiz, view)
	}

	conv := ws.Chat()
	p.Chat = conv.Messages()
	p.CanChat = conv.CanSend()
	p.ChatFailed = conv.State() == workspace.ChatFailed
	p.Audio = ws.Audio().State()
	p.Related, p.RelatedLoaded = ws.Related()
}
