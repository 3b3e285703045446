package main

import (
	"fmt"
	"io"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// consoleToaster prints notification messages and signals each one on shown
type consoleToaster struct {
	w     io.Writer
	shown chan struct{}
}

func newConsoleToaster(w io.Writer, capacity int) *consoleToaster {
	return &consoleToaster{w: w, shown: make(chan struct{}, capacity)}
}

func (t *consoleToaster) Toast(msg model.UiMessage) {
	prefix := "i"
	if msg.IsError {
		prefix = "!"
	}
	fmt.Fprintf(t.w, "%s %s\n", prefix, msg.Text)
	t.shown <- struct{}{}
}
