// Package replay feeds archived or hand-written frames back through the debug
// log decoder.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chromedp/cdproto/network"
	"github.com/dgnsrekt/devlog_agent/internal/debuglog"
	"github.com/dgnsrekt/devlog_agent/internal/types"
)

const (
	textOpcode     = 1
	maxLineBytes   = 64 * 1024 * 1024
	frameEventType = "frame_received"
)

type Decoder interface {
	Decode(frame *network.WebSocketFrame) debuglog.FrameReport
}

// Summary counts what a replay did.
type Summary struct {
	Lines     int
	Frames    int
	Relevant  int
	Emitted   int
	Skipped   int
	Truncated int
	Failures  int
}

func (s Summary) String() string {
	return fmt.Sprintf("lines=%d frames=%d relevant=%d emitted=%d skipped=%d truncated=%d failures=%d",
		s.Lines, s.Frames, s.Relevant, s.Emitted, s.Skipped, s.Truncated, s.Failures)
}

// Run decodes every frame read from r. Lines are archived capture records
// unless raw is set, in which case each line is a text frame payload.
// Archive lines that are not received frames are skipped.
func Run(ctx context.Context, r io.Reader, d Decoder, raw bool) (Summary, error) {
	var sum Summary
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Lines++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			sum.Skipped++
			continue
		}

		frame, ok := parseLine(line, raw, &sum)
		if !ok {
			sum.Skipped++
			continue
		}

		rep := d.Decode(frame)
		sum.Frames++
		if rep.Relevant {
			sum.Relevant++
		}
		sum.Emitted += rep.Emitted
		sum.Failures += len(rep.ConversionFailures) + len(rep.FragmentErrors) + rep.ShapeMismatches
	}
	if err := sc.Err(); err != nil {
		return sum, fmt.Errorf("replay: line %d: %w", sum.Lines+1, err)
	}
	return sum, nil
}

func parseLine(line string, raw bool, sum *Summary) (*network.WebSocketFrame, bool) {
	if raw {
		return &network.WebSocketFrame{Opcode: textOpcode, PayloadData: line}, true
	}

	var rec types.WebSocketCapture
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		slog.Warn("replay: skipping undecodable archive line", "line", sum.Lines, "error", err)
		return nil, false
	}
	if rec.EventType != "" && rec.EventType != frameEventType {
		return nil, false
	}
	if rec.Truncated {
		sum.Truncated++
		slog.Warn("replay: frame was truncated when archived", "line", sum.Lines, "original_size", rec.OriginalSize)
	}
	return &network.WebSocketFrame{Opcode: float64(rec.Opcode), PayloadData: rec.PayloadData}, true
}
