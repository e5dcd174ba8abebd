package luarule

import (
	"errors"
	"testing"
)

const shoutingScript = `
id = "style.shouting"
source = "style"
function check(text)
    local findings = {}
    if string.find(text, "!!") then
        local s = string.find(text, "!!") - 1
        findings[#findings + 1] = {
            start = s,
            stop = s + 2,
            message = "Avoid stacked exclamation marks",
            suggestions = { "!" },
        }
    end
    return findings
end
`

func TestLoad(t *testing.T) {
	t.Run("reads id and source globals", func(t *testing.T) {
		r, err := Load("fallback", shoutingScript)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		defer r.Close()

		if r.ID() != "style.shouting" {
			t.Errorf("ID = %s", r.ID())
		}
		if r.Source() != "style" {
			t.Errorf("Source = %s", r.Source())
		}
	})

	t.Run("falls back to the given name", func(t *testing.T) {
		r, err := Load("my-rule", "function check(text) return {} end")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		defer r.Close()
		if r.ID() != "my-rule" {
			t.Errorf("ID = %s", r.ID())
		}
	})

	t.Run("rejects scripts without check", func(t *testing.T) {
		if _, err := Load("bad", "x = 1"); !errors.Is(err, ErrNoCheckFunction) {
			t.Errorf("err = %v, want ErrNoCheckFunction", err)
		}
	})

	t.Run("rejects scripts that do not compile", func(t *testing.T) {
		if _, err := Load("broken", "function check("); err == nil {
			t.Error("expected a load error")
		}
	})
}

func TestCheck(t *testing.T) {
	t.Run("reports findings with suggestions", func(t *testing.T) {
		r, err := Load("fallback", shoutingScript)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		defer r.Close()

		findings := r.Check("Stop!! now", nil)
		if len(findings) != 1 {
			t.Fatalf("got %d findings: %v", len(findings), findings)
		}
		f := findings[0]
		if f.Range.Start != 4 || f.Range.End != 6 {
			t.Errorf("range = %v, want [4, 6)", f.Range)
		}
		if f.RuleID != "style.shouting" {
			t.Errorf("rule = %s", f.RuleID)
		}
		if len(f.Suggestions) != 1 || f.Suggestions[0] != "!" {
			t.Errorf("suggestions = %v", f.Suggestions)
		}
	})

	t.Run("clean text yields nothing", func(t *testing.T) {
		r, err := Load("fallback", shoutingScript)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		defer r.Close()
		if findings := r.Check("Calm text.", nil); len(findings) != 0 {
			t.Errorf("got findings: %v", findings)
		}
	})

	t.Run("runtime error yields nothing", func(t *testing.T) {
		r, err := Load("exploder", "function check(text) error('boom') end")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		defer r.Close()
		if findings := r.Check("anything", nil); findings != nil {
			t.Errorf("got findings from failing rule: %v", findings)
		}
	})

	t.Run("out-of-bounds findings are dropped", func(t *testing.T) {
		r, err := Load("oob", `
function check(text)
    return { { start = 0, stop = 999, message = "too far" } }
end`)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		defer r.Close()
		if findings := r.Check("tiny", nil); len(findings) != 0 {
			t.Errorf("got findings: %v", findings)
		}
	})
}
