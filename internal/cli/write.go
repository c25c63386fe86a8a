package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/student-roster-api/internal/dto"
)

type studentFlags struct {
	*RootOptions
	payload dto.StudentPayload
}

func (f *studentFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.payload.StudentID, "student-id", "", "student ID (required)")
	cmd.Flags().StringVar(&f.payload.FirstName, "firstname", "", "first name (required)")
	cmd.Flags().StringVar(&f.payload.LastName, "lastname", "", "last name")
	cmd.Flags().StringVar(&f.payload.Nickname, "nickname", "", "nickname")
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &studentFlags{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := opts.Client().Create(cmd.Context(), opts.payload)
			if err != nil {
				return err
			}
			return printStudent(cmd.OutOrStdout(), opts.Format, student)
		},
	}
	opts.bind(cmd)
	return cmd
}

// NewUpdateCommand creates the update command. All four fields are replaced.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &studentFlags{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace a student's details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			student, err := opts.Client().Update(cmd.Context(), args[0], opts.payload)
			if err != nil {
				return err
			}
			return printStudent(cmd.OutOrStdout(), opts.Format, student)
		},
	}
	opts.bind(cmd)
	return cmd
}

type deleteOptions struct {
	*RootOptions
	Yes bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &deleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a student after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if !opts.Yes && !prompt.Confirm(fmt.Sprintf("Delete student %s?", args[0])) {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
			message, err := opts.Client().Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// prompter asks yes/no questions on a line-oriented terminal.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

// Confirm defaults to no on empty input or EOF.
func (p *prompter) Confirm(question string) bool {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	if !p.in.Scan() {
		fmt.Fprintln(p.out)
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(p.in.Text()))
	return answer == "y" || answer == "yes"
}
