package graphgl

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestConnectReplacesOccupiedInput(t *testing.T) {
	g := NewGraph(NewRegistry())
	a, _ := g.AddNode("const-float")
	b, _ := g.AddNode("const-float")
	s, _ := g.AddNode("sin")
	if err := g.Connect(a.ID, 0, s.ID, 0); err != nil {
		t.Fatal(err)
	}
	if err := g.Connect(b.ID, 0, s.ID, 0); err != nil {
		t.Fatal(err)
	}
	conns := g.Connections()
	if len(conns) != 1 {
		t.Fatalf("got %d connections, want 1", len(conns))
	}
	if conns[0].From != b.ID {
		t.Errorf("connection from node %d, want replacement source %d", conns[0].From, b.ID)
	}
}

func TestConnectRejectsBadPorts(t *testing.T) {
	g := NewGraph(NewRegistry())
	a, _ := g.AddNode("const-float")
	s, _ := g.AddNode("sin")
	if err := g.Connect(a.ID, 1, s.ID, 0); err == nil {
		t.Error("out-of-range output port accepted")
	}
	if err := g.Connect(a.ID, 0, s.ID, 3); err == nil {
		t.Error("out-of-range input port accepted on fixed-arity node")
	}
	// Dynamic-arity nodes accept inputs beyond the current port list.
	bl, _ := g.AddNode("blend")
	if err := g.Connect(a.ID, 0, bl.ID, 5); err != nil {
		t.Errorf("dynamic-arity input rejected: %v", err)
	}
}

func TestRemoveNodeDropsConnections(t *testing.T) {
	g := NewGraph(NewRegistry())
	a, _ := g.AddNode("const-float")
	s, _ := g.AddNode("sin")
	out, _ := g.AddNode("output")
	g.Connect(a.ID, 0, s.ID, 0)
	g.Connect(s.ID, 0, out.ID, 0)
	g.RemoveNode(s.ID)
	if got := len(g.Connections()); got != 0 {
		t.Errorf("%d connections survive node removal, want 0", got)
	}
	if g.Node(s.ID) != nil {
		t.Error("removed node still resolvable")
	}
}

func TestGraphJSONRoundTrip(t *testing.T) {
	reg := NewRegistry()
	g := NewGraph(reg)
	out, _ := g.AddNode("output")
	c, _ := g.AddNode("const-float")
	c.Data["value"] = 0.25
	s, _ := g.AddNode("sin")
	l, _ := g.AddNode("make-light")
	g.Connect(c.ID, 0, s.ID, 0)
	g.Connect(s.ID, 0, out.ID, 0)
	g.ConnectAccessor(l.ID, 0, s.ID, 0, "intensity")

	b1, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	g2 := NewGraph(reg)
	if err := json.Unmarshal(b1, g2); err != nil {
		t.Fatal(err)
	}
	b2, err := json.Marshal(g2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b1, b2) {
		t.Errorf("round trip not stable:\n%s\n%s", b1, b2)
	}
	if g2.Node(c.ID).DataFloat("value", 0) != 0.25 {
		t.Error("instance data lost in round trip")
	}
	conn, ok := g2.ConnTo(s.ID, 0)
	if !ok || conn.Accessor != "intensity" {
		t.Errorf("accessor lost in round trip: %+v", conn)
	}
}

func TestGraphJSONUnknownType(t *testing.T) {
	g := NewGraph(NewRegistry())
	payload := []byte(`{"nodes":[{"id":0,"type":"no-such-node"}]}`)
	if err := json.Unmarshal(payload, g); err == nil {
		t.Error("unknown node type deserialized without error")
	}
}

func TestValidateCycle(t *testing.T) {
	g := NewGraph(NewRegistry())
	a, _ := g.AddNode("sin")
	b, _ := g.AddNode("cos")
	out, _ := g.AddNode("output")
	g.Connect(a.ID, 0, b.ID, 0)
	g.Connect(b.ID, 0, a.ID, 0)
	g.Connect(b.ID, 0, out.ID, 0)
	diags := Validate(g)
	found := false
	for _, d := range diags {
		if d.Code == CodeCyclicGraph && d.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Errorf("cycle not reported: %v", diags)
	}
}

func TestValidateCycleThroughFeedback(t *testing.T) {
	g := NewGraph(NewRegistry())
	fb, _ := g.AddNode("feedback")
	add, _ := g.AddNode("add")
	out, _ := g.AddNode("output")
	g.Connect(fb.ID, 0, add.ID, 0)
	g.Connect(add.ID, 0, fb.ID, 0)
	g.Connect(add.ID, 0, out.ID, 0)
	for _, d := range Validate(g) {
		if d.Code == CodeCyclicGraph {
			t.Fatalf("feedback-routed cycle reported as error: %v", d)
		}
	}
}

func TestValidateSinkCount(t *testing.T) {
	g := NewGraph(NewRegistry())
	g.AddNode("const-float")
	diags := Validate(g)
	if len(diags) == 0 || diags[0].Code != CodeNoSinkNode || diags[0].Severity != SeverityWarning {
		t.Errorf("missing-sink warning not reported: %v", diags)
	}
	g.AddNode("output")
	g.AddNode("output")
	found := false
	for _, d := range Validate(g) {
		if d.Code == CodeMultipleSinkNodes && d.Severity == SeverityError {
			found = true
		}
	}
	if !found {
		t.Error("multiple sinks not reported as error")
	}
}

func TestValidateUnreachable(t *testing.T) {
	g := NewGraph(NewRegistry())
	out, _ := g.AddNode("output")
	c, _ := g.AddNode("const-float")
	g.Connect(c.ID, 0, out.ID, 0)
	stray, _ := g.AddNode("time")
	found := false
	for _, d := range Validate(g) {
		if d.Code == CodeDisconnectedSubgraph && d.Node == stray.ID && d.Severity == SeverityWarning {
			found = true
		}
	}
	if !found {
		t.Error("unreachable node not warned about")
	}
}
