package ai

import "errors"

const (
	analysisFailedMsg = "Failed to analyze paper."
	chatInitFailedMsg = "Error connecting to the paper context. Please try again."
	chatSendFailedMsg = "Sorry, I encountered an error responding to that."
	audioFailedMsg    = "Failed to generate audio summary."
)

var (
	ErrEmptyResponse = errors.New("no response generated")
	ErrNoAudio       = errors.New("no audio generated")
)

// AnalysisError means no analysis could be produced for the file.
type AnalysisError struct {
	Err error
}

func NewAnalysisError(err error) *AnalysisError { return &AnalysisError{Err: err} }

func (e *AnalysisError) Error() string { return wrapMessage(analysisFailedMsg, e.Err) }
func (e *AnalysisError) Unwrap() error { return e.Err }

// UserMessage is the text displayed in the error view.
func (e *AnalysisError) UserMessage() string { return analysisFailedMsg }

// ChatInitError means the paper conversation could not be opened.
type ChatInitError struct {
	Err error
}

func (e *ChatInitError) Error() string       { return wrapMessage(chatInitFailedMsg, e.Err) }
func (e *ChatInitError) Unwrap() error       { return e.Err }
func (e *ChatInitError) UserMessage() string { return chatInitFailedMsg }

// ChatSendError means a turn failed part way. The conversation stays usable.
type ChatSendError struct {
	Err error
}

func (e *ChatSendError) Error() string       { return wrapMessage(chatSendFailedMsg, e.Err) }
func (e *ChatSendError) Unwrap() error       { return e.Err }
func (e *ChatSendError) UserMessage() string { return chatSendFailedMsg }

// SearchError is logged and never shown; related papers degrade to none.
type SearchError struct {
	Err error
}

func (e *SearchError) Error() string { return wrapMessage("related paper search failed", e.Err) }
func (e *SearchError) Unwrap() error { return e.Err }

// AudioError means no audio overview was produced.
type AudioError struct {
	Err error
}

func (e *AudioError) Error() string       { return wrapMessage(audioFailedMsg, e.Err) }
func (e *AudioError) Unwrap() error       { return e.Err }
func (e *AudioError) UserMessage() string { return audioFailedMsg }

func wrapMessage(msg string, err error) string {
	if err == nil {
		return msg
	}
	return msg + ": " + err.Error()
}
