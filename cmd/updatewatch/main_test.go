package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestHelpListsCommands(t *testing.T) {
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--help"})
	if err := root.Execute(); err != nil {
		t.Fatalf("help should succeed: %v", err)
	}
	for _, name := range []string{"updatewatch", "run", "init", "simulate", "show", "status", "interval"} {
		if !strings.Contains(out.String(), name) {
			t.Fatalf("help output missing %q: %s", name, out.String())
		}
	}
}

func TestSubcommandFlags(t *testing.T) {
	root := buildRoot()
	tests := map[string][]string{
		"run":      {"interval", "simulate", "listen", "terminal"},
		"simulate": {"interval", "count"},
		"show":     {"terminal", "width"},
		"status":   {"api-url", "api-timeout"},
		"interval": {"api-url", "ms"},
	}
	for name, flags := range tests {
		cmd, _, err := root.Find([]string{name})
		if err != nil {
			t.Fatalf("find %s: %v", name, err)
		}
		for _, f := range flags {
			if cmd.Flags().Lookup(f) == nil {
				t.Fatalf("%s: missing --%s", name, f)
			}
		}
	}
	if root.PersistentFlags().Lookup("config") == nil || root.PersistentFlags().Lookup("path") == nil {
		t.Fatal("missing persistent flags")
	}
}

func TestUnknownCommandFails(t *testing.T) {
	root := buildRoot()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"explode"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
