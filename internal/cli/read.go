package cli

import (
	"github.com/spf13/cobra"
)

type pageOptions struct {
	*RootOptions
	Page int
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &pageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students page by page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := opts.Client().List(cmd.Context(), opts.Page, opts.Limit)
			if err != nil {
				return err
			}
			return printPage(cmd.OutOrStdout(), opts.Format, page)
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	return cmd
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &pageOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search students by student ID or name",
		Long: `Search students whose student ID, first name, last name or nickname
contains the text, ignoring case.

Example:
  roster-cli search ann --page 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := opts.Client().Search(cmd.Context(), args[0], opts.Page, opts.Limit)
			if err != nil {
				return err
			}
			return printPage(cmd.OutOrStdout(), opts.Format, page)
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "page number")
	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := rootOpts.Client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printStudent(cmd.OutOrStdout(), rootOpts.Format, student)
		},
	}
}
