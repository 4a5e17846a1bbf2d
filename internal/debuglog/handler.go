package debuglog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/devlog_agent/internal/metrics"
)

const (
	// RecordSeparator delimits JSON envelopes multiplexed into one frame.
	RecordSeparator = "\x1e"

	// DeveloperLogsType is the messageType carried by bot developer logs.
	DeveloperLogsType = "DeveloperLogs"

	// ShapeMismatchMessage is reported for log envelopes without item.messages.
	ShapeMismatchMessage = "Parsed response object does not contain item or messages:"

	textOpcode      = 1
	logEnvelopeType = 2
)

// BotMessage is one message inside a bot activity envelope.
type BotMessage struct {
	MessageType string `json:"messageType"`
	Text        string `json:"text"`
	CreatedAt   string `json:"createdAt"`
}

// Envelope is one JSON record split out of a frame payload.
type Envelope struct {
	Type json.RawMessage `json:"type"`
	Item *EnvelopeItem   `json:"item"`
}

// EnvelopeItem holds the undecoded messages of a log envelope. Messages are
// decoded one at a time so a malformed message cannot hide its siblings.
type EnvelopeItem struct {
	Messages []json.RawMessage `json:"messages"`
}

// IsLogEnvelope reports whether the envelope type marks a bot log candidate.
func (e *Envelope) IsLogEnvelope() bool {
	return isLogEnvelopeType(e.Type)
}

// FrameReport summarizes one decoded frame.
type FrameReport struct {
	Relevant           bool
	Fragments          int
	Emitted            int
	ShapeMismatches    int
	FragmentErrors     []error
	ConversionFailures []*LogParseError
}

// Handler decodes captured WebSocket frames into developer logs.
// It is safe for concurrent use when its sinks are.
type Handler struct {
	out      Output
	notifier Notifier
	console  Console
	recorder Recorder
}

// NewHandler wires a Handler to its sinks. A nil notifier or console falls back
// to slog; a nil output discards lines; a nil recorder keeps no history.
func NewHandler(out Output, notifier Notifier, console Console, recorder Recorder) *Handler {
	if out == nil {
		out = discardOutput{}
	}
	if notifier == nil {
		notifier = SlogNotifier{}
	}
	if console == nil {
		console = SlogConsole{}
	}
	if recorder == nil {
		recorder = Recorders(nil)
	}
	return &Handler{out: out, notifier: notifier, console: console, recorder: recorder}
}

// HandleEvent decodes frame and returns the number of logs emitted. Irrelevant
// frames and relevant frames without convertible messages both return 0.
func (h *Handler) HandleEvent(frame *network.WebSocketFrame) (emitted int) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("debug log frame handler panicked", "panic", r)
		}
	}()
	return h.Decode(frame).Emitted
}

// Decode runs the full pipeline over frame and reports what happened.
func (h *Handler) Decode(frame *network.WebSocketFrame) FrameReport {
	var rep FrameReport
	if !IsRelevant(frame) {
		metrics.ObserveFrame(false)
		return rep
	}
	rep.Relevant = true

	fragments := SplitObjects(frame.PayloadData)
	rep.Fragments = len(fragments)

	for i, fragment := range fragments {
		env, err := parseEnvelope(fragment)
		if err != nil {
			rep.FragmentErrors = append(rep.FragmentErrors, fmt.Errorf("fragment %d: %w", i, err))
			continue
		}
		if env == nil {
			continue
		}
		if env.Item == nil || env.Item.Messages == nil {
			rep.ShapeMismatches++
			h.console.Warn(ShapeMismatchMessage, json.RawMessage(fragment))
			continue
		}

		msgs, malformed := SelectBotTextMessages(env)
		rep.ConversionFailures = append(rep.ConversionFailures, malformed...)
		for _, msg := range msgs {
			if _, err := h.ConvertBotMessageToOutput(msg); err != nil {
				var parseErr *LogParseError
				if errors.As(err, &parseErr) {
					rep.ConversionFailures = append(rep.ConversionFailures, parseErr)
				} else {
					slog.Warn("Failed to emit debug log", "created_at", msg.CreatedAt, "error", err)
				}
				continue
			}
			rep.Emitted++
		}
	}

	if len(rep.FragmentErrors) > 0 {
		slog.Warn("Dropped malformed debug log fragments",
			"count", len(rep.FragmentErrors),
			"fragments", rep.Fragments,
			"error", errors.Join(rep.FragmentErrors...))
	}
	if len(rep.ConversionFailures) > 0 {
		h.reportConversionFailures(rep.ConversionFailures)
	}

	metrics.ObserveFrame(true)
	metrics.AddEntries(rep.Emitted)
	metrics.AddFragmentErrors(len(rep.FragmentErrors))
	metrics.AddShapeMismatches(rep.ShapeMismatches)
	metrics.AddConversionErrors(len(rep.ConversionFailures))
	return rep
}

// reportConversionFailures raises one notification per frame that lists every
// failing message text.
func (h *Handler) reportConversionFailures(failures []*LogParseError) {
	texts := make([]string, 0, len(failures))
	for _, f := range failures {
		texts = append(texts, f.Text)
	}
	message := logParsePrefix + strings.Join(texts, "\n")
	h.notifier.ShowError(message)
	h.out.AppendLine(message)
}

// ConvertBotMessageToOutput converts msg, writes its pretty form to the output
// and records it. Conversion errors are returned to the caller.
func (h *Handler) ConvertBotMessageToOutput(msg BotMessage) (*CopilotDebugLog, error) {
	entry, err := ConvertBotMessageToOutputJSON(msg)
	if err != nil {
		return nil, err
	}
	pretty, err := entry.Pretty()
	if err != nil {
		return nil, fmt.Errorf("format debug log: %w", err)
	}
	h.out.AppendLine(pretty)
	h.recorder.Record(entry)
	return entry, nil
}

// ConvertBotMessageToOutputJSON builds a log from msg without emitting it.
func ConvertBotMessageToOutputJSON(msg BotMessage) (*CopilotDebugLog, error) {
	return NewCopilotDebugLog(msg.Text, msg.CreatedAt)
}

// IsRelevant probes the first JSON value of a text frame for a log envelope
// type. Any probe failure means the frame is not relevant.
func IsRelevant(frame *network.WebSocketFrame) bool {
	if frame == nil || frame.Opcode != textOpcode || frame.PayloadData == "" {
		return false
	}
	var probe struct {
		Type json.RawMessage `json:"type"`
	}
	dec := json.NewDecoder(strings.NewReader(frame.PayloadData))
	if err := dec.Decode(&probe); err != nil {
		return false
	}
	return isLogEnvelopeType(probe.Type)
}

// SplitObjects splits a payload on RecordSeparator, dropping blank fragments.
func SplitObjects(payload string) []string {
	parts := strings.Split(payload, RecordSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SelectBotTextMessages returns the DeveloperLogs messages of env in order.
// Other message types are skipped without looking at their other fields. A
// DeveloperLogs message whose fields have the wrong JSON types is returned as
// a failure for that message alone.
func SelectBotTextMessages(env *Envelope) ([]BotMessage, []*LogParseError) {
	if env == nil || env.Item == nil {
		return nil, nil
	}
	var (
		out    []BotMessage
		failed []*LogParseError
	)
	for _, raw := range env.Item.Messages {
		var head struct {
			MessageType json.RawMessage `json:"messageType"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}
		var messageType string
		if err := json.Unmarshal(head.MessageType, &messageType); err != nil || messageType != DeveloperLogsType {
			continue
		}
		var msg BotMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			failed = append(failed, &LogParseError{Text: string(raw), Err: err})
			continue
		}
		out = append(out, msg)
	}
	return out, failed
}

// PrettyPrintJSON reformats text with a two-space indent, keeping key order.
func PrettyPrintJSON(text string) (string, error) {
	src := bytes.TrimSpace([]byte(text))
	if !json.Valid(src) {
		return "", fmt.Errorf("pretty print: invalid JSON")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, src, "", "  "); err != nil {
		return "", fmt.Errorf("pretty print: %w", err)
	}
	return buf.String(), nil
}

// parseEnvelope decodes a fragment. Envelopes whose type is not a log type are
// returned as nil without decoding their item.
func parseEnvelope(fragment string) (*Envelope, error) {
	var head struct {
		Type json.RawMessage `json:"type"`
		Item json.RawMessage `json:"item"`
	}
	if err := json.Unmarshal([]byte(fragment), &head); err != nil {
		return nil, err
	}
	if !isLogEnvelopeType(head.Type) {
		return nil, nil
	}
	env := &Envelope{Type: head.Type}
	// An item that is not an object, or messages that are not an array, leave
	// env.Item nil and count as a shape mismatch.
	if !isJSONKind(head.Item, '{') {
		return env, nil
	}
	var item struct {
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(head.Item, &item); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if !isJSONKind(item.Messages, '[') {
		return env, nil
	}
	var msgs []json.RawMessage
	if err := json.Unmarshal(item.Messages, &msgs); err != nil {
		return nil, fmt.Errorf("decode item messages: %w", err)
	}
	env.Item = &EnvelopeItem{Messages: msgs}
	return env, nil
}

// isJSONKind reports whether raw starts with the opening delimiter open.
func isJSONKind(raw json.RawMessage, open byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == open
}

func isLogEnvelopeType(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var t float64
	if err := json.Unmarshal(raw, &t); err != nil {
		return false
	}
	return t == logEnvelopeType
}

type discardOutput struct{}

func (discardOutput) AppendLine(string) {}
