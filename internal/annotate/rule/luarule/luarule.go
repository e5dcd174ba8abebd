// Package luarule loads user-scripted analysis rules written in Lua.
//
// A rule script declares an optional string global `id` and a function
// `check(text)` returning an array of tables with `start` and `stop`
// byte offsets (0-based, half-open), a `message`, and an optional
// `suggestions` array:
//
//	id = "style.shouting"
//	function check(text)
//	    local findings = {}
//	    -- inspect text, append { start=0, stop=4, message="..." }
//	    return findings
//	end
//
// Each Rule owns its own Lua state and is not safe for concurrent use;
// the worker pool constructs a separate pipeline (and therefore separate
// Lua states) per worker goroutine.
package luarule

import (
	"errors"
	"fmt"
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/prosecheck/internal/annotate/finding"
	"github.com/dshills/prosecheck/internal/annotate/token"
)

// Errors returned when loading rule scripts.
var (
	ErrNoCheckFunction = errors.New("lua rule: script does not define check()")
	ErrBadFinding      = errors.New("lua rule: malformed finding table")
)

// Rule is a Lua-scripted analysis rule.
type Rule struct {
	id     string
	source string
	state  *lua.LState
	check  *lua.LFunction
}

// Load compiles a rule script from source. The name is used as the rule
// id when the script does not declare one.
func Load(name, script string) (*Rule, error) {
	st := lua.NewState()
	if err := st.DoString(script); err != nil {
		st.Close()
		return nil, fmt.Errorf("lua rule %s: %w", name, err)
	}

	fn, ok := st.GetGlobal("check").(*lua.LFunction)
	if !ok {
		st.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoCheckFunction, name)
	}

	id := name
	if v, ok := st.GetGlobal("id").(lua.LString); ok {
		id = string(v)
	}
	source := "lua"
	if v, ok := st.GetGlobal("source").(lua.LString); ok {
		source = string(v)
	}

	return &Rule{id: id, source: source, state: st, check: fn}, nil
}

// LoadFile compiles a rule script from a file path.
func LoadFile(path string) (*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lua rule %s: %w", path, err)
	}
	return Load(path, string(data))
}

// Close releases the Lua state.
func (r *Rule) Close() {
	r.state.Close()
}

// ID implements rule.Rule.
func (r *Rule) ID() string { return r.id }

// Source implements rule.Rule.
func (r *Rule) Source() string { return r.source }

// Check implements rule.Rule. A script error yields no findings;
// annotation is best effort and rule failures must not disrupt checking.
func (r *Rule) Check(text string, _ []token.Token) []finding.Finding {
	err := r.state.CallByParam(lua.P{
		Fn:      r.check,
		NRet:    1,
		Protect: true,
	}, lua.LString(text))
	if err != nil {
		return nil
	}

	ret := r.state.Get(-1)
	r.state.Pop(1)

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return nil
	}

	var out []finding.Finding
	tbl.ForEach(func(_, v lua.LValue) {
		ft, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		f, err := findingFromTable(ft, r.id, r.source)
		if err != nil {
			return
		}
		if f.Range.IsValid() && f.Range.End <= len(text) {
			out = append(out, f)
		}
	})
	return out
}

// findingFromTable converts one Lua finding table.
func findingFromTable(t *lua.LTable, ruleID, source string) (finding.Finding, error) {
	start, ok1 := t.RawGetString("start").(lua.LNumber)
	stop, ok2 := t.RawGetString("stop").(lua.LNumber)
	msg, ok3 := t.RawGetString("message").(lua.LString)
	if !ok1 || !ok2 || !ok3 {
		return finding.Finding{}, ErrBadFinding
	}

	f := finding.Finding{
		Range:   finding.Range{Start: int(start), End: int(stop)},
		Message: string(msg),
		RuleID:  ruleID,
		Source:  source,
	}

	if sug, ok := t.RawGetString("suggestions").(*lua.LTable); ok {
		sug.ForEach(func(_, v lua.LValue) {
			if s, ok := v.(lua.LString); ok {
				f.Suggestions = append(f.Suggestions, string(s))
			}
		})
	}
	return f, nil
}
