package main

import "time"

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	Path       string
}

// RunFlags Flag structs to decouple cobra from logic for testing.
type RunFlags struct {
	Interval time.Duration
	Simulate bool
	Listen   string
	Terminal bool
}

type SimulateFlags struct {
	Interval time.Duration
	Count    int
}

type ShowFlags struct {
	Terminal bool
	Width    int
}

// APIFlags select a running watcher's control surface.
type APIFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

type IntervalFlags struct {
	APIFlags
	MS int64
}
