package workspace

import "sync"

// Tab is a dashboard section.
type Tab string

const (
	TabInsights    Tab = "insights"
	TabMethodology Tab = "methodology"
	TabStudy       Tab = "study"
	TabChat        Tab = "chat"
)

// Tabs lists dashboard sections in display order.
var Tabs = []Tab{TabInsights, TabMethodology, TabStudy, TabChat}

var tabLabels = map[Tab]string{
	TabInsights:    "Key Insights",
	TabMethodology: "Methodology & Code",
	TabStudy:       "Study Guide",
	TabChat:        "Chat Assistant",
}

func (t Tab) Label() string { return tabLabels[t] }

// ParseTab maps a request value to a tab, defaulting to insights.
func ParseTab(s string) Tab {
	t := Tab(s)
	if _, ok := tabLabels[t]; ok {
		return t
	}
	return TabInsights
}

// Widgets holds per-widget display state keyed by item index. It is reset
// whenever the analysis it describes is replaced.
type Widgets struct {
	mu        sync.RWMutex
	tab       Tab
	zoomed    map[int]bool
	activeVar map[int]int
	answers   map[int]int
}

func NewWidgets() *Widgets {
	return &Widgets{
		tab:       TabInsights,
		zoomed:    make(map[int]bool),
		activeVar: make(map[int]int),
		answers:   make(map[int]int),
	}
}

func (w *Widgets) SetTab(t Tab) {
	w.mu.Lock()
	w.tab = t
	w.mu.Unlock()
}

func (w *Widgets) Tab() Tab {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tab
}

// ToggleZoom flips the zoom of equation idx and returns the new value.
func (w *Widgets) ToggleZoom(idx int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.zoomed[idx] = !w.zoomed[idx]
	return w.zoomed[idx]
}

func (w *Widgets) Zoomed(idx int) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.zoomed[idx]
}

// ToggleVariable highlights variable v of equation eq, or clears it when it
// is already highlighted. It returns the active index or -1.
func (w *Widgets) ToggleVariable(eq, v int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.activeVar[eq]; ok && cur == v {
		delete(w.activeVar, eq)
		return -1
	}
	w.activeVar[eq] = v
	return v
}

// ActiveVariable returns the highlighted variable of equation eq or -1.
func (w *Widgets) ActiveVariable(eq int) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if v, ok := w.activeVar[eq]; ok {
		return v
	}
	return -1
}

// SelectAnswer records the first choice for question q. Later choices are
// ignored and the recorded one is returned.
func (w *Widgets) SelectAnswer(q, option int) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if cur, ok := w.answers[q]; ok {
		return cur
	}
	w.answers[q] = option
	return option
}

// Answer returns the recorded choice for question q.
func (w *Widgets) Answer(q int) (int, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	v, ok := w.answers[q]
	return v, ok
}
