package glrun

import (
	"strconv"
	"testing"

	"github.com/graphgl/graphgl"
)

func TestParseInfoLog(t *testing.T) {
	tests := []struct {
		name    string
		log     string
		line    int
		warning bool
	}{
		{"amd", "ERROR: 0:12: 'foo' : undeclared identifier", 12, false},
		{"mesa", "0:7(3): error: `bar' undeclared", 7, false},
		{"mesa warning", "0:9(1): warning: shift of negative value", 9, true},
		{"nvidia", `0(15) : error C1008: undefined variable "baz"`, 15, false},
		{"unpositioned", "internal error: compiler bug", 0, false},
	}
	for _, tt := range tests {
		entries := ParseInfoLog(tt.log)
		if len(entries) != 1 {
			t.Errorf("%s: got %d entries, want 1", tt.name, len(entries))
			continue
		}
		e := entries[0]
		if e.Line != tt.line {
			t.Errorf("%s: line %d, want %d", tt.name, e.Line, tt.line)
		}
		if e.Warning != tt.warning {
			t.Errorf("%s: warning %v, want %v", tt.name, e.Warning, tt.warning)
		}
		if e.Msg == "" {
			t.Errorf("%s: empty message", tt.name)
		}
	}
}

func TestParseInfoLogMultiline(t *testing.T) {
	log := "ERROR: 0:5: 'a' : undeclared identifier\n\nERROR: 0:6: 'b' : undeclared identifier\n"
	entries := ParseInfoLog(log)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Line != 5 || entries[1].Line != 6 {
		t.Errorf("lines %d, %d, want 5, 6", entries[0].Line, entries[1].Line)
	}
}

// Attribute maps driver line numbers to nodes through the compiled
// program's statement map.
func TestAttribute(t *testing.T) {
	reg := graphgl.NewRegistry()
	g := graphgl.NewGraph(reg)
	out, _ := g.AddNode("output")
	c, err := g.AddNode("const-float")
	if err != nil {
		t.Fatal(err)
	}
	c.Data["value"] = 0.5
	sinNode, _ := g.AddNode("sin")
	if err := g.Connect(c.ID, 0, sinNode.ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(sinNode.ID, 0, out.ID, 0); err != nil {
		t.Fatal(err)
	}
	res := graphgl.NewCompiler().Compile(g)
	if res.Failed() {
		t.Fatalf("compile failed: %v", res.Errors)
	}
	// Locate a body statement line and fabricate a driver error on it.
	bodyLine := -1
	for i := 1; i < 1000; i++ {
		if _, ok := res.NodeForLine(i); ok {
			bodyLine = i
			break
		}
	}
	if bodyLine < 0 {
		t.Fatal("no mapped body line found")
	}
	diags := Attribute(res, "ERROR: 0:"+strconv.Itoa(bodyLine)+": 'v9' : undeclared identifier")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Node == graphgl.NoNode {
		t.Error("diagnostic not attributed to a node")
	}
	if diags[0].Code != graphgl.CodeRuntimeCompile {
		t.Errorf("code %s, want %s", diags[0].Code, graphgl.CodeRuntimeCompile)
	}
}
