// Package cli implements dashctl, a terminal client over the same resources
// the dashboard serves.
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// Opener builds the registry the commands work on. It is called once per command run.
type Opener func() (*repository.Registry, error)

// PromptConfirm asks on the terminal; anything but "y" cancels.
func PromptConfirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}

// NewRootCommand builds the dashctl command tree.
func NewRootCommand(open Opener, confirm func(label string) bool) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "dashctl",
		Short:         "Back-office catalog client",
		Long:          `dashctl lists, shows and deletes back-office records through the catalog API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if logLevel == "" {
				return nil
			}
			return logger.SetLevel(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newListCommand(open), newShowCommand(open), newDeleteCommand(open, confirm))
	return root
}

func resolve(open Opener, name string) (commander, error) {
	reg, err := open()
	if err != nil {
		return nil, err
	}
	return lookup(reg, name)
}

func newListCommand(open Opener) *cobra.Command {
	var opts ListOptions

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rc, err := resolve(open, args[0])
			if err != nil {
				return err
			}
			return rc.List(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "first page to load")
	cmd.Flags().IntVar(&opts.PageSize, "per-page", 0, "page size (defaults to the resource's)")
	cmd.Flags().IntVar(&opts.Pages, "pages", 1, "number of pages to load")
	cmd.Flags().BoolVar(&opts.Infinite, "infinite", false, "append pages instead of replacing them")
	cmd.Flags().StringVar(&opts.Search, "search", "", "local text search over the loaded rows")
	cmd.Flags().StringToStringVar(&opts.Filters, "filter", nil, "backend filter key=value (repeatable)")
	return cmd
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

func newShowCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "show <resource> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			rc, err := resolve(open, args[0])
			if err != nil {
				return err
			}
			return rc.Show(cmd.Context(), cmd.OutOrStdout(), id)
		},
	}
}

func newDeleteCommand(open Opener, confirm func(string) bool) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete one record after confirmation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			rc, err := resolve(open, args[0])
			if err != nil {
				return err
			}
			ask := confirm
			if yes {
				ask = nil
			}
			return rc.Delete(cmd.Context(), cmd.OutOrStdout(), id, ask)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// Execute runs root and prints a failure the way the dashboard would show it.
func Execute(ctx context.Context, root *cobra.Command, errOut io.Writer) int {
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, errorStyle.Render("error: "+remote.Message(err)))
		return 1
	}
	return 0
}
