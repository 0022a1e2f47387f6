package tracker

import (
	"reflect"
	"testing"
	"time"
)

func TestActionCount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"plain", "Action Count: 10", 10},
		{"embedded in body", "## Status\nAction Count: 7\nOther: x", 7},
		{"no space", "Action Count:42", 42},
		{"extra spaces", "Action Count:    3", 3},
		{"zero", "Action Count: 0", 0},
		{"missing", "nothing to see", 0},
		{"empty", "", 0},
		{"not a number", "Action Count: lots", 0},
		{"negative sign ignored", "Action Count: -5", 0},
		{"wrong case", "action count: 9", 0},
		{"overflow", "Action Count: 99999999999999999999999", 0},
		{"first match wins", "Action Count: 2\nAction Count: 5", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{Body: tt.body}
			if got := rec.ActionCount(); got != tt.want {
				t.Errorf("ActionCount(%q): got %d, want %d", tt.body, got, tt.want)
			}
		})
	}
}

func TestNextAndActiveAgent(t *testing.T) {
	tests := []struct {
		name       string
		labels     []string
		wantNext   string
		wantNextOK bool
		wantActive string
		wantActOK  bool
	}{
		{"empty", nil, "", false, "", false},
		{"next only", []string{"bug", "next:bob"}, "bob", true, "", false},
		{"active only", []string{"active:carol"}, "", false, "carol", true},
		{"both", []string{"active:carol", "next:dave"}, "dave", true, "carol", true},
		{"empty names are absent", []string{"next:", "active: "}, "", false, "", false},
		{"first in label order", []string{"next:bob", "next:alice"}, "bob", true, "", false},
		{"prefix must lead", []string{"is-next:bob"}, "", false, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{Labels: tt.labels}
			next, ok := rec.NextAgent()
			if next != tt.wantNext || ok != tt.wantNextOK {
				t.Errorf("NextAgent: got (%q, %v), want (%q, %v)", next, ok, tt.wantNext, tt.wantNextOK)
			}
			active, ok := rec.ActiveAgent()
			if active != tt.wantActive || ok != tt.wantActOK {
				t.Errorf("ActiveAgent: got (%q, %v), want (%q, %v)", active, ok, tt.wantActive, tt.wantActOK)
			}
		})
	}
}

func TestAllWithPrefix(t *testing.T) {
	rec := Record{Labels: []string{"active:a", "next:x", "active:b", "next:y", "other"}}
	if got, want := rec.ActiveAgents(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ActiveAgents: got %v, want %v", got, want)
	}
	if got, want := rec.NextAgents(), []string{"x", "y"}; !reflect.DeepEqual(got, want) {
		t.Errorf("NextAgents: got %v, want %v", got, want)
	}
}

func TestActiveLease(t *testing.T) {
	fetched := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := Record{Labels: []string{"active:carol"}, FetchedAt: fetched}

	lease, ok := rec.ActiveLease()
	if !ok {
		t.Fatal("expected a lease")
	}
	if lease.Holder != "carol" {
		t.Errorf("Holder: got %q, want carol", lease.Holder)
	}
	if !lease.ObservedAt.Equal(fetched) {
		t.Errorf("ObservedAt: got %v, want %v", lease.ObservedAt, fetched)
	}
	if lease.Label() != "active:carol" {
		t.Errorf("Label: got %q, want active:carol", lease.Label())
	}

	if _, ok := (Record{}).ActiveLease(); ok {
		t.Error("expected no lease on empty record")
	}
}

func TestLabelHelpers(t *testing.T) {
	if got := ActiveLabel("alice"); got != "active:alice" {
		t.Errorf("ActiveLabel: got %q", got)
	}
	if got := NextLabel("alice"); got != "next:alice" {
		t.Errorf("NextLabel: got %q", got)
	}
}
