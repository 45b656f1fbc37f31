package util

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"
)

// ContextWithSignal returns a context cancelled when one of given signals arrives.
func ContextWithSignal(parent context.Context, sig ...os.Signal) (context.Context, context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, sig...)

	ctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case s := <-sigChan:
			log.Debug().Str("signal", s.String()).Msg("signal received during execution")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
