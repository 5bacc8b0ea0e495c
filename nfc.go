package main

import (
	"context"
	"log"
	"time"
)

// runCardPoller is the NFC event source.  It blocks on the reader, forwards
// each detected card to the controller, then insists on seeing the card leave
// the field before polling again — one physical tap, one submission.  Runs on
// its own goroutine until the context is cancelled.
func runCardPoller(ctx context.Context, reader CardReader, ctl *Controller, logger *log.Logger) {
	for {
		idm, err := reader.WaitForCard(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Printf("card wait: %v", err)
			time.Sleep(time.Second)
			continue
		}
		ctl.SubmitCard(idm)

		if err := reader.WaitForRemoval(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Printf("card removal wait: %v", err)
		}
	}
}
