package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sefaria/internal/content"
	"sefaria/internal/entity"
)

func (c *cli) textCmd() *cobra.Command {
	var linksOnly bool
	cmd := &cobra.Command{
		Use:   "text <ref>",
		Short: "Print the text of a ref",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := c.core.Content.Get(cmd.Context(), args[0], content.Options{IsLinkRequest: linksOnly})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().BoolVar(&linksOnly, "links", false, "fetch only the links of the ref")
	return cmd
}

func (c *cli) linksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "links <ref>",
		Short: "Summarize the links of a ref by category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := c.core.Links.SummarizeRef(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func (c *cli) resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <ref>",
		Short: "Show the book, category and section of a ref",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.core.Content.Resolve(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func (c *cli) packagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "packages",
		Short: "Manage downloadable packages",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List packages and their download state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), c.core.Downloads.Packages())
		},
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Fetch the manifest and queue updated titles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.core.Downloads.CheckForUpdates(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	var quiet bool
	get := &cobra.Command{
		Use:   "download <name>",
		Short: "Download every title of a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !quiet {
				errOut := cmd.ErrOrStderr()
				c.core.Downloads.Subscribe("cli", func(p entity.Progress) {
					fmt.Fprintf(errOut, "\r%d/%d bytes", p.ReceivedBytes, p.TotalBytes)
				})
				defer c.core.Downloads.Unsubscribe("cli")
			}
			if err := c.core.Downloads.DownloadPackage(cmd.Context(), args[0]); err != nil {
				return err
			}
			if !quiet {
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			return printJSON(cmd.OutOrStdout(), c.core.Downloads.Titles())
		},
	}
	get.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print transfer progress")

	resume := &cobra.Command{
		Use:   "resume",
		Short: "Continue the download queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.core.Downloads.ResumeDownload(cmd.Context())
		},
	}

	var yes bool
	del := &cobra.Command{
		Use:   "delete",
		Short: "Remove every downloaded archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.core.Downloads.DeleteLibrary(cmd.Context(), yes); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "library deleted")
			return nil
		},
	}
	del.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")

	cmd.AddCommand(list, check, get, resume, del)
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and sync reading history",
	}

	var limit, offset int
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the merged reading history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), c.core.History.History(limit, offset))
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of items")
	list.Flags().IntVar(&offset, "offset", 0, "items to skip")

	saved := &cobra.Command{
		Use:   "saved",
		Short: "Print saved items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), c.core.History.Saved())
		},
	}

	sync := &cobra.Command{
		Use:   "sync",
		Short: "Push pending events and pull the account history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res := c.core.History.SyncHistory(cmd.Context(), c.core.History.Settings())
			if !res.Synced && !res.Skipped {
				return fmt.Errorf("sync failed, %d events still pending", len(c.core.History.Pending()))
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.AddCommand(list, saved, sync)
	return cmd
}
