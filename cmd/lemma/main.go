// Command lemma runs commands in throwaway AWS Lambda instances.
//
//	lemma create --image URI --role ARN   create an instance, print its variables
//	lemma invoke -- COMMAND...            run a command on an instance
//	lemma run --image URI -- COMMAND...   create, invoke and delete in one go
//	lemma delete [NAME]                   remove an instance
//	lemma list                            list instances
//	lemma logs [NAME]                     print an instance's latest logs
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dadevel/lemma/api"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status: 2 for invalid input,
// 1 for everything else.
func exitCode(err error) int {
	var configErr *api.ConfigError
	if errors.As(err, &configErr) {
		return 2
	}
	return 1
}
