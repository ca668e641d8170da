package trigger

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dshills/vtstate/internal/config"
)

// FromConfig builds triggers from configuration, skipping disabled ones.
// On error, triggers already built are closed.
func FromConfig(cfgs []config.TriggerConfig, luaTimeout time.Duration) ([]*Trigger, error) {
	var out []*Trigger
	fail := func(err error) ([]*Trigger, error) {
		_ = NewEvaluator(out).Close()
		return nil, err
	}

	for _, c := range cfgs {
		if c.Disabled {
			continue
		}
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return fail(fmt.Errorf("trigger %q: %w", c.Name, err))
		}
		action, err := newAction(c, luaTimeout)
		if err != nil {
			return fail(fmt.Errorf("trigger %q: %w", c.Name, err))
		}
		out = append(out, &Trigger{Name: c.Name, Pattern: re, Action: action})
	}
	return out, nil
}

func newAction(c config.TriggerConfig, luaTimeout time.Duration) (Action, error) {
	p := c.Params
	switch c.Action {
	case "set_variable":
		if p["name"] == "" {
			return nil, fmt.Errorf("%w: name", ErrMissingParam)
		}
		value, ok := p["value"]
		if !ok {
			value = "$0"
		}
		return &SetVariableAction{Name: p["name"], Value: value}, nil
	case "mark":
		return &AddMarkAction{Label: p["label"]}, nil
	case "highlight":
		group := 0
		if s, ok := p["group"]; ok {
			g, err := strconv.Atoi(s)
			if err != nil || g < 0 {
				return nil, fmt.Errorf("invalid group %q", s)
			}
			group = g
		}
		return &HighlightAction{Group: group, Label: p["label"]}, nil
	case "alert":
		return &AlertAction{Message: p["message"]}, nil
	case "capture":
		prefix, ok := p["prefix"]
		if !ok {
			prefix = c.Name + "_"
		}
		return &CaptureAction{Prefix: prefix}, nil
	case "lua":
		return NewLuaAction(c.Script, luaTimeout)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
}
