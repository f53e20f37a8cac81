// =============================================================================
// help_test.go - Tests for the Help System (help.go)
// =============================================================================

package main

import (
	"strings"
	"testing"
)

func TestPrintHelpOverview(t *testing.T) {
	var out strings.Builder
	if err := printHelp(&out, ""); err != nil {
		t.Fatalf("printHelp: %v", err)
	}

	for _, want := range []string{".help", ".pending", ".clear", ".json", ".watch", ".quit", "clientlist", "key=value"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("overview missing %q", want)
		}
	}
}

func TestPrintHelpTopics(t *testing.T) {
	tests := []struct {
		topic    string
		contains string
	}{
		{".watch", ".watch <event>"},
		{"watch", ".watch <event>"},
		{".PENDING", ".pending"},
		{"clientlist", "clientlist [-uid]"},
		{"Login", "client_login_name"},
		{"  use  ", "use sid=<id>"},
		{".quit", ".exit"},
	}

	for _, tc := range tests {
		t.Run(tc.topic, func(t *testing.T) {
			var out strings.Builder
			if err := printHelp(&out, tc.topic); err != nil {
				t.Fatalf("printHelp(%q): %v", tc.topic, err)
			}
			if !strings.Contains(out.String(), tc.contains) {
				t.Errorf("help for %q missing %q:\n%s", tc.topic, tc.contains, out.String())
			}
		})
	}
}

func TestPrintHelpUnknown(t *testing.T) {
	for _, topic := range []string{"nosuchcommand", ".clientlist"} {
		var out strings.Builder
		err := printHelp(&out, topic)
		if err == nil {
			t.Errorf("printHelp(%q) should fail", topic)
			continue
		}
		if out.Len() != 0 {
			t.Errorf("printHelp(%q) wrote output on error: %q", topic, out.String())
		}
	}
}

// Every dot-command the REPL handles has a detailed entry.
func TestDotHelpComplete(t *testing.T) {
	for _, name := range []string{"help", "pending", "clear", "json", "watch", "quit"} {
		if _, ok := dotHelp[name]; !ok {
			t.Errorf("dotHelp missing %q", name)
		}
	}
}
