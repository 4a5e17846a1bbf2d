package debuglog

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const logParsePrefix = "Error parsing logAsJson, full message:\n"

// Plugin describes a plugin enabled for the bot turn that produced a log.
type Plugin struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Version string `json:"version"`
	Source  string `json:"source,omitempty"`
}

// CopilotDebugLog is a developer log message decoded from a bot frame.
type CopilotDebugLog struct {
	ID                  string    `json:"id"`
	Raw                 string    `json:"raw"`
	EnabledPlugins      []Plugin  `json:"enabled_plugins"`
	FunctionDisplayName string    `json:"function_display_name,omitempty"`
	CreatedAt           string    `json:"created_at"`
	ReceivedAt          time.Time `json:"received_at"`
}

// LogParseError reports DeveloperLogs text that is not valid JSON.
type LogParseError struct {
	Text string
	Err  error
}

func (e *LogParseError) Error() string { return logParsePrefix + e.Text }

func (e *LogParseError) Unwrap() error { return e.Err }

// NewCopilotDebugLog parses text as a developer log body. Text that is not
// valid JSON yields a *LogParseError rather than an empty entry.
func NewCopilotDebugLog(text, createdAt string) (*CopilotDebugLog, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, &LogParseError{Text: text, Err: err}
	}

	// Only object bodies carry fields; a well-typed field is taken and anything
	// else falls back to its zero value.
	var body struct {
		EnabledPlugins      json.RawMessage `json:"enabledPlugins"`
		FunctionDisplayName json.RawMessage `json:"functionDisplayName"`
	}
	_ = json.Unmarshal([]byte(text), &body)

	plugins := []Plugin{}
	if len(body.EnabledPlugins) > 0 {
		var decoded []Plugin
		if err := json.Unmarshal(body.EnabledPlugins, &decoded); err == nil && decoded != nil {
			plugins = decoded
		}
	}
	var fnName string
	if len(body.FunctionDisplayName) > 0 {
		_ = json.Unmarshal(body.FunctionDisplayName, &fnName)
	}

	return &CopilotDebugLog{
		ID:                  uuid.NewString(),
		Raw:                 text,
		EnabledPlugins:      plugins,
		FunctionDisplayName: fnName,
		CreatedAt:           createdAt,
		ReceivedAt:          time.Now().UTC(),
	}, nil
}

// Pretty returns the raw log body formatted for display.
func (l *CopilotDebugLog) Pretty() (string, error) {
	return PrettyPrintJSON(l.Raw)
}
