package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	err := c.rootCmd().ExecuteContext(ctx)
	if closeErr := c.close(); closeErr != nil {
		log.Printf("close error: %v", closeErr)
	}
	if err != nil {
		stop()
		os.Exit(1)
	}
}
