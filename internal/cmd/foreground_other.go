//go:build windows

package cmd

import "context"

// foregroundEvents never fires on platforms without job control signals.
func foregroundEvents(ctx context.Context) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out
}
