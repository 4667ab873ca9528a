package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"sefaria/internal/app"
	"sefaria/internal/config"
	"sefaria/internal/content"
	"sefaria/internal/download"
)

type cli struct {
	configPath string
	prompt     bool
	onFailure  string

	core *app.Core
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sefaria",
		Short:        "Read and manage the offline Sefaria library",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a config file (json or yaml)")
	root.PersistentFlags().BoolVar(&c.prompt, "prompt", false, "ask before retrying a failed network request")
	root.PersistentFlags().StringVar(&c.onFailure, "on-failure", "pause", "what to do when an archive transfer fails: pause or retry")

	root.AddCommand(
		c.textCmd(),
		c.linksCmd(),
		c.resolveCmd(),
		c.packagesCmd(),
		c.historyCmd(),
	)
	return root
}

func (c *cli) open(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	var failure download.FailureHandler
	switch c.onFailure {
	case "pause":
		failure = download.FailureHandlerFunc(func(string, error) download.FailureAction { return download.Pause })
	case "retry":
		failure = download.FailureHandlerFunc(func(string, error) download.FailureAction { return download.Retry })
	default:
		return fmt.Errorf("unknown --on-failure %q", c.onFailure)
	}

	opts := app.Options{Failure: failure}
	if c.prompt {
		opts.Prompter = terminalPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
	}

	core, err := app.New(cmd.Context(), cfg, opts)
	if err != nil {
		return err
	}
	c.core = core
	return nil
}

// close releases the core opened by a subcommand, if any.
func (c *cli) close() error {
	if c.core == nil {
		return nil
	}
	err := c.core.Close()
	c.core = nil
	return err
}

// terminalPrompter asks on out and reads the answer from in. End of input
// counts as no.
func terminalPrompter(in io.Reader, out io.Writer) content.Prompter {
	reader := bufio.NewReader(in)
	return content.PrompterFunc(func(_ context.Context, ref string, err error) bool {
		fmt.Fprintf(out, "Could not load %s (%v). Retry? [y/N] ", ref, err)
		line, readErr := reader.ReadString('\n')
		if readErr != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
