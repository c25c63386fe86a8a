// Package cli implements the roster operator console.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/student-roster-api/internal/client"
	"github.com/noah-isme/student-roster-api/pkg/config"
)

// ValidFormats lists the accepted output formats.
var ValidFormats = []string{"text", "json"}

// RootOptions holds the global flags.
type RootOptions struct {
	APIURL   string
	Limit    int
	Format   string
	Timeout  time.Duration
	Debounce time.Duration

	Logger *zap.Logger
	client *client.RosterClient
}

// Client returns the roster client built from the flags.
func (o *RootOptions) Client() *client.RosterClient {
	if o.client == nil {
		o.client = client.New(o.APIURL, nil, o.Timeout)
	}
	return o.client
}

// NewRootCommand builds the roster-cli command tree. cfg supplies flag defaults.
func NewRootCommand(cfg config.ClientConfig, logger *zap.Logger) *cobra.Command {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := &RootOptions{Logger: logger, Debounce: cfg.Debounce}

	cmd := &cobra.Command{
		Use:           "roster-cli",
		Short:         "Browse and maintain the student roster",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.Limit <= 0 {
				return fmt.Errorf("limit must be positive, got %d", opts.Limit)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", cfg.BaseURL, "roster API base URL")
	cmd.PersistentFlags().IntVar(&opts.Limit, "limit", cfg.PageLimit, "page size")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", cfg.Timeout, "HTTP timeout")

	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewBrowseCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
