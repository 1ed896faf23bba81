package cmd

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/linkdigest/linkdigest/internal/command"
	"github.com/linkdigest/linkdigest/internal/faults"
	"github.com/linkdigest/linkdigest/internal/printer"
)

var runAdmin bool

var runCmd = &cobra.Command{
	Use:   "run <command line>",
	Short: "Dispatch a chat-style command line",
	Long: `Run one command through the chat command registry, exactly as a
chat integration would dispatch it.

Examples:
  linkdigest run help
  linkdigest run analyze https://example.com/article
  linkdigest run --admin mode hybrid
  linkdigest run --admin blacklist add group-42`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDispatch,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runAdmin, "admin", false, "dispatch with admin privileges")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := newComponents(ctx, GetConfig())
	if err != nil {
		return err
	}
	defer c.Close()

	req, ok := command.Parse(strings.Join(args, " "), "cli", "cli", runAdmin)
	if !ok {
		return errors.New("empty command")
	}

	out, err := c.registry.Dispatch(ctx, req)
	if err != nil {
		var f *faults.Fault
		if errors.As(err, &f) {
			return printer.Fault(f)
		}
		return err
	}
	printer.Println(out)
	return nil
}
