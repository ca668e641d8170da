package mutation

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/vtstate/internal/mutation/echo"
	"github.com/dshills/vtstate/internal/mutation/intervaltree"
	"github.com/dshills/vtstate/internal/mutation/prompt"
	"github.com/dshills/vtstate/internal/terminal"
	"github.com/dshills/vtstate/internal/trigger"
)

// OSC commands handled here rather than by the grid.
const (
	oscTitleAndIcon = 0
	oscTitle        = 2
	oscPalette      = 4
	oscWorkingDir   = 7
	oscForeground   = 10
	oscBackground   = 11
	oscResetPalette = 104
	oscResetFg      = 110
	oscResetBg      = 111
	oscShellMark    = 133
	oscProprietary  = 1337
)

// ApplyToken applies one token. Unknown or malformed tokens are ignored.
func (s *State) ApplyToken(tok terminal.Token) {
	switch tok.Type {
	case terminal.TokenText:
		s.applyText(tok.Text)
	case terminal.TokenControl:
		s.applyControl(tok)
	case terminal.TokenOSC:
		s.applyOSC(tok)
	case terminal.TokenCSI:
		if !s.applyReportRequest(tok) {
			s.applyGrid(tok)
		}
	case terminal.TokenESC:
		s.applyGrid(tok)
		if tok.Final == 'c' && tok.Inter == "" {
			s.probe.Cancel()
			s.prompt.Reset()
			s.colors.Reset()
		}
	}
}

func (s *State) applyText(text string) {
	if s.prompt.State() == prompt.EchoingComposerSentCommand {
		s.probe.Feed(text)
	}
	s.screen.WriteText(text)
	if s.inCommand {
		s.updateCommandRange(CommandRange{Start: s.current.Start, End: s.screen.CursorCoord()})
	}
}

func (s *State) applyControl(tok terminal.Token) {
	switch tok.Control {
	case terminal.BEL:
		s.AddJoinedSideEffect(bellEffect{})
	case terminal.LF, terminal.VT, terminal.FF:
		_, y := s.screen.Cursor()
		line := trigger.Line{Text: s.screen.LineText(y), Y: s.screen.FirstLine() + int64(y)}
		s.screen.Apply(tok)
		s.lineFeed = true
		s.evaluateTriggers(line)
		if s.inCommand {
			s.updateCommandRange(CommandRange{Start: s.current.Start, End: s.screen.CursorCoord()})
		}
	default:
		s.screen.Apply(tok)
	}
}

// applyGrid applies a token to the screen and keeps the interval trees in
// step with alternate screen switches.
func (s *State) applyGrid(tok terminal.Token) {
	wasAlternate := s.screen.Alternate()
	s.screen.Apply(tok)
	if s.screen.Alternate() != wasAlternate {
		s.marks.Swap(s.saved)
		s.log.Debug("interval trees swapped", zap.Bool("alternate", s.screen.Alternate()))
	}
}

func (s *State) evaluateTriggers(line trigger.Line) {
	if s.TriggersSuppressed() || line.Text == "" || len(s.triggers.Triggers()) == 0 {
		return
	}
	s.triggers.Evaluate(line, s)
	s.ExecutePostTriggerActions()
}

// applyReportRequest answers device status and attribute queries. It
// reports whether tok was one.
func (s *State) applyReportRequest(tok terminal.Token) bool {
	var answer string
	switch {
	case tok.Final == 'n' && tok.Private == 0 && tok.Inter == "":
		switch tok.Param(0, 0) {
		case 5:
			answer = "\x1b[0n"
		case 6:
			x, y := s.screen.Cursor()
			answer = fmt.Sprintf("\x1b[%d;%dR", y+1, x+1)
		default:
			return true
		}
	case tok.Final == 'c' && tok.Private == 0 && tok.Inter == "":
		answer = "\x1b[?62;22c"
	case tok.Final == 'c' && tok.Private == '>' && tok.Inter == "":
		answer = "\x1b[>0;10;1c"
	default:
		return false
	}
	s.sendReport(answer)
	return true
}

// sendReport queues an answer if the throttle allows it.
func (s *State) sendReport(answer string) {
	if !s.throttle.TryBegin() {
		s.log.Debug("report throttled",
			zap.Int("pending", s.throttle.Pending()),
			zap.Int("ceiling", s.throttle.Ceiling()))
		return
	}
	s.AddDeferredSideEffect(reportEffect{data: []byte(answer), throttle: s.throttle})
}

func (s *State) applyOSC(tok terminal.Token) {
	switch tok.OSC {
	case oscTitleAndIcon, oscTitle:
		s.title = tok.Data
		s.AddJoinedSideEffect(titleEffect(tok.Data))
	case oscWorkingDir:
		s.setWorkingDirectory(parseFileURL(tok.Data))
	case oscShellMark:
		s.applyShellMark(tok.Data)
	case oscProprietary:
		s.applyProprietary(tok.Data)
	case oscPalette:
		s.applyPalette(tok.Data)
	case oscForeground, oscBackground:
		s.applyDynamicColor(tok.OSC, tok.Data)
	case oscResetPalette:
		if tok.Data == "" {
			s.colors.ResetPalette(-1)
		}
		for _, f := range strings.Split(tok.Data, ";") {
			if i, err := strconv.Atoi(f); err == nil {
				s.colors.ResetPalette(i)
			}
		}
		s.screenChanged()
	case oscResetFg:
		s.colors.SetForeground(terminal.DefaultColor)
		s.screenChanged()
	case oscResetBg:
		s.colors.SetBackground(terminal.DefaultColor)
		s.screenChanged()
	default:
		s.log.Debug("ignored OSC", zap.Int("command", tok.OSC))
	}
}

// screenChanged forces a refresh at the end of the batch.
func (s *State) screenChanged() {
	s.screen.Touch()
}

func (s *State) setWorkingDirectory(dir string) {
	if dir == "" || dir == s.cwd {
		return
	}
	s.cwd = dir
	s.AddJoinedSideEffect(cwdEffect(dir))
}

func parseFileURL(data string) string {
	u, err := url.Parse(data)
	if err != nil || (u.Scheme != "" && u.Scheme != "file") {
		return ""
	}
	return u.Path
}

// applyShellMark handles FinalTerm shell integration: A prompt start, B
// prompt end, C command executed, D[;status] command finished.
func (s *State) applyShellMark(data string) {
	kind, arg, _ := strings.Cut(data, ";")
	switch kind {
	case "A":
		if s.prompt.Fire(prompt.EventPromptStart) {
			_, y := s.screen.Cursor()
			s.AddMark(s.screen.FirstLine()+int64(y), "prompt")
		}
	case "B":
		s.prompt.Fire(prompt.EventPromptEnd)
	case "C":
		if s.prompt.State() == prompt.EchoingComposerSentCommand {
			// The shell started the command before the echo was verified.
			s.probe.Cancel()
			s.prompt.Fire(prompt.EventEchoFallback)
			return
		}
		s.prompt.Fire(prompt.EventCommandExecuted)
	case "D":
		if s.prompt.Fire(prompt.EventCommandFinished) && arg != "" {
			s.SetVariable("last_exit_status", arg)
		}
	}
}

// applyProprietary handles the OSC 1337 keys SetMark,
// AddAnnotation, CurrentDir and SetUserVar.
func (s *State) applyProprietary(data string) {
	key, value, _ := strings.Cut(data, "=")
	x, y := s.screen.Cursor()
	absY := s.screen.FirstLine() + int64(y)

	switch key {
	case "SetMark":
		s.AddMark(absY, "")
	case "AddAnnotation":
		room := s.screen.Width() - x
		length := room
		if n, msg, ok := strings.Cut(value, "|"); ok {
			if v, err := strconv.Atoi(n); err == nil && v > 0 {
				length, value = min(v, room), msg
			}
		}
		s.InsertEntry(intervaltree.KindAnnotation, lineInterval(absY, x, x+max(length, 1)), value, uuid.Nil)
	case "CurrentDir":
		s.setWorkingDirectory(value)
	case "SetUserVar":
		name, encoded, ok := strings.Cut(value, "=")
		if !ok {
			return
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.log.Debug("bad user var", zap.String("name", name), zap.Error(err))
			return
		}
		s.SetVariable("user."+name, string(decoded))
	}
}

// applyPalette handles OSC 4 pairs of index and color spec. A spec of "?"
// asks for the current color.
func (s *State) applyPalette(data string) {
	fields := strings.Split(data, ";")
	for i := 0; i+1 < len(fields); i += 2 {
		index, err := strconv.Atoi(fields[i])
		if err != nil {
			continue
		}
		if fields[i+1] == "?" {
			c := s.colors.Resolve(terminal.ColorFromIndex(index), true)
			s.sendReport(fmt.Sprintf("\x1b]4;%d;%s\x1b\\", index, colorSpec(c, true)))
			continue
		}
		if c, ok := terminal.ParseColorSpec(fields[i+1]); ok {
			s.colors.SetPalette(index, c)
			s.screenChanged()
		}
	}
}

func (s *State) applyDynamicColor(cmd int, spec string) {
	if spec == "?" {
		c := s.colors.Foreground()
		if cmd == oscBackground {
			c = s.colors.Background()
		}
		s.sendReport(fmt.Sprintf("\x1b]%d;%s\x1b\\", cmd, colorSpec(c, cmd == oscForeground)))
		return
	}
	c, ok := terminal.ParseColorSpec(spec)
	if !ok {
		return
	}
	if cmd == oscForeground {
		s.colors.SetForeground(c)
	} else {
		s.colors.SetBackground(c)
	}
	s.screenChanged()
}

// colorSpec formats c the way xterm answers color queries. Default colors
// answer as white on black.
func colorSpec(c terminal.Color, foreground bool) string {
	if c.Default {
		if foreground {
			return "rgb:ffff/ffff/ffff"
		}
		return "rgb:0000/0000/0000"
	}
	return fmt.Sprintf("rgb:%02x%02x/%02x%02x/%02x%02x", c.R, c.R, c.G, c.G, c.B, c.B)
}

var _ echo.Delegate = (*State)(nil)
var _ trigger.Host = (*State)(nil)
