package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"nullguard/internal/patch"
	"nullguard/internal/pipeline"
	"nullguard/internal/ui"
)

// progressWanted reads --ui. The view draws on stderr and only replaces
// pretty output; auto follows whether stderr is a terminal.
func progressWanted(mode, format string, quiet, stderrTTY bool) (bool, error) {
	var on bool
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "auto":
		on = stderrTTY
	case "on":
		on = true
	case "off":
	default:
		return false, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", mode)
	}
	return on && format == "pretty" && !quiet, nil
}

type patchOutcome struct {
	result *patch.Result
	err    error
}

func runPatchWithUI(ctx context.Context, title, input, output string, opts patch.Options) (*patch.Result, error) {
	events := make(chan pipeline.Event, 256)
	outcomeCh := make(chan patchOutcome, 1)

	go func() {
		o := opts
		o.Sink = pipeline.ChannelSink{Ch: events}
		res, err := patch.ProcessFolder(ctx, input, output, o)
		outcomeCh <- patchOutcome{result: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, nil, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	// The pass keeps sending after an interrupted view.
	go func() {
		for range events {
		}
	}()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.result, uiErr
	}
	return outcome.result, outcome.err
}
