package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/student-roster-api/internal/coordinator"
	"github.com/noah-isme/student-roster-api/internal/dto"
	appErrors "github.com/noah-isme/student-roster-api/pkg/errors"
)

const browseHelp = `Commands:
  /<text>                 search (a lone / clears the search)
  n, p                    next or previous page
  g <page>                go to page
  l <limit>               change page size
  r                       refresh
  a <sid>,<first>[,<last>[,<nick>]]       add a student
  e <id> <sid>,<first>[,<last>[,<nick>]]  edit a student
  d <id>                  delete a student
  q                       quit`

// writerNotifier prints mutation outcomes.
type writerNotifier struct {
	out io.Writer
}

func (n writerNotifier) Success(message string) {
	fmt.Fprintf(n.out, "OK: %s\n", message)
}

func (n writerNotifier) Failure(err *appErrors.Error) {
	fmt.Fprintf(n.out, "%s: %s\n", err.Code, err.Message)
}

// NewBrowseCommand creates the interactive browse command.
func NewBrowseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Interactively page through and edit the roster",
		Long:  "Interactively page through and edit the roster.\n\n" + browseHelp,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd.Context(), rootOpts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runBrowse(ctx context.Context, opts *RootOptions, in io.Reader, out io.Writer) error {
	prompt := newPrompter(in, out)
	coord := coordinator.New(opts.Client(), coordinator.Options{
		Limit:     opts.Limit,
		Debounce:  opts.Debounce,
		Notifier:  writerNotifier{out: out},
		Confirmer: prompt,
		Logger:    opts.Logger,
	})

	if err := coord.Refresh(ctx); err != nil {
		return err
	}
	render(out, opts.Format, coord.Snapshot())

	for {
		fmt.Fprint(out, "> ")
		if !prompt.in.Scan() {
			fmt.Fprintln(out)
			return prompt.in.Err()
		}
		line := strings.TrimSpace(prompt.in.Text())
		if line == "" {
			continue
		}
		quit, err := browseStep(ctx, coord, out, line)
		if quit {
			return nil
		}
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		render(out, opts.Format, coord.Snapshot())
	}
}

// browseStep executes one console command.
func browseStep(ctx context.Context, coord *coordinator.Coordinator, out io.Writer, line string) (bool, error) {
	if strings.HasPrefix(line, "/") {
		coord.SetInput(ctx, strings.TrimPrefix(line, "/"))
		coord.Flush(ctx)
		return false, coord.Snapshot().Err
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	state := coord.Snapshot()

	switch verb {
	case "q", "quit", "exit":
		return true, nil
	case "?", "h", "help":
		fmt.Fprintln(out, browseHelp)
		return false, nil
	case "n", "next":
		return false, changePage(ctx, coord, state.Page+1)
	case "p", "prev":
		return false, changePage(ctx, coord, state.Page-1)
	case "g", "go":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return false, fmt.Errorf("invalid page %q", rest)
		}
		return false, changePage(ctx, coord, n)
	case "l", "limit":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return false, fmt.Errorf("invalid limit %q", rest)
		}
		return false, coord.SetLimit(ctx, n)
	case "r", "refresh":
		return false, coord.Refresh(ctx)
	case "a", "add":
		payload, err := parsePayload(rest)
		if err != nil {
			return false, err
		}
		_, err = coord.Create(ctx, payload)
		return false, ignoreReported(err)
	case "e", "edit":
		id, fields, _ := strings.Cut(rest, " ")
		payload, err := parsePayload(fields)
		if err != nil {
			return false, err
		}
		_, err = coord.Update(ctx, id, payload)
		return false, ignoreReported(err)
	case "d", "delete":
		if rest == "" {
			return false, fmt.Errorf("delete needs an id")
		}
		deleted, err := coord.Delete(ctx, rest)
		if err == nil && !deleted {
			fmt.Fprintln(out, "Cancelled.")
		}
		return false, ignoreReported(err)
	default:
		return false, fmt.Errorf("unknown command %q, type ? for help", verb)
	}
}

func changePage(ctx context.Context, coord *coordinator.Coordinator, n int) error {
	if !coord.GoToPage(ctx, n) {
		return fmt.Errorf("page %d is not available", n)
	}
	return coord.Snapshot().Err
}

// ignoreReported drops mutation errors the notifier has already printed.
func ignoreReported(err error) error {
	if errors.Is(err, coordinator.ErrBusy) {
		return err
	}
	return nil
}

func parsePayload(raw string) (dto.StudentPayload, error) {
	parts := strings.Split(raw, ",")
	if len(parts) < 2 || len(parts) > 4 {
		return dto.StudentPayload{}, fmt.Errorf("expected <sid>,<first>[,<last>[,<nick>]]")
	}
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return dto.StudentPayload{
		StudentID: strings.TrimSpace(parts[0]),
		FirstName: strings.TrimSpace(parts[1]),
		LastName:  strings.TrimSpace(parts[2]),
		Nickname:  strings.TrimSpace(parts[3]),
	}, nil
}

func render(out io.Writer, format string, state coordinator.State) {
	if state.Searching() {
		fmt.Fprintf(out, "Search: %q\n", strings.TrimSpace(state.Query))
	}
	page := &dto.StudentPage{Students: state.Students, Pagination: state.Pagination}
	if err := printPage(out, format, page); err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
}
