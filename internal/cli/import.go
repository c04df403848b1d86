package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tartampluch/go-birthday-reminders/internal/app"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/contacts"
	"github.com/tartampluch/go-birthday-reminders/internal/reconcile"
)

// NewImportCommand reconciles the configured contact source into the store.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   config.CmdImport,
		Short: config.DescImport,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := newOneShotHost(opts)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			src := contacts.NewVCardSource(opts.Settings.Contacts, contacts.NewHTTPFetcher(), opts.credentials())
			rep, err := h.svc.Import(cmd.Context(), src, confirm)
			if err != nil {
				return err
			}
			return writeImportReport(cmd.OutOrStdout(), rep)
		},
	}

	cmd.Flags().BoolVar(&confirm, config.FlagConfirm, false, config.FlagDescConfirm)
	return cmd
}

func writeImportReport(w io.Writer, rep app.ImportReport) error {
	if _, err := fmt.Fprintf(w, config.ImportSummary, rep.Added, rep.Merged, len(rep.Pending), len(rep.Conflicts)); err != nil {
		return err
	}
	if len(rep.Pending) == 0 && len(rep.Conflicts) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, config.TabMinWidth, config.TabWidth, config.TabPadding, ' ', 0)
	row := func(label string, p reconcile.Proposal) {
		birthday := ""
		if p.Candidate.Birthday != nil {
			birthday = p.Candidate.Birthday.String()
		}
		fmt.Fprintf(tw, config.ImportRowFormat, label, p.Candidate.FullName(), p.Existing.FullName(), birthday)
	}
	for _, p := range rep.Pending {
		row(config.ImportPending, p)
	}
	for _, p := range rep.Conflicts {
		row(config.ImportConflict, p)
	}
	return tw.Flush()
}
