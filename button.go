package main

import (
	"context"
	"log"
	"time"
)

// debounceWindow suppresses contact bounce: after an edge the input must
// still read pressed this much later to count as a press.
const debounceWindow = 50 * time.Millisecond

// runButtonWatcher is the button event source.  It waits for an input edge,
// debounces it, submits a single press to the controller and then waits for
// release so a held button does not retrigger.  Runs on its own goroutine
// until the context is cancelled.
func runButtonWatcher(ctx context.Context, hw Hardware, ctl *Controller, logger *log.Logger) {
	for {
		if err := hw.WaitForButtonEdge(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Printf("button wait: %v", err)
			time.Sleep(time.Second)
			continue
		}
		time.Sleep(debounceWindow)
		if !hw.ButtonPressed() {
			// Bounce, or the release edge of an earlier press.
			continue
		}
		ctl.SubmitButton()

		for hw.ButtonPressed() {
			if ctx.Err() != nil {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
}
