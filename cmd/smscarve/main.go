/*
smscarve recovers SMS messages from binary images, e.g. memory dumps of mobile phones or SIM cards. It also
acquires the messages that are stored on a GSM modem or phone that is connected through a serial port.
*/
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
