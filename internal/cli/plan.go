package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/engine"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
	"github.com/tartampluch/go-birthday-reminders/internal/store"
)

type planOptions struct {
	format string
	limit  int
}

// NewPlanCommand prints the plan without touching any dispatcher.
func NewPlanCommand(opts *RootOptions) *cobra.Command {
	po := &planOptions{}

	cmd := &cobra.Command{
		Use:   config.CmdPlan,
		Short: config.DescPlan,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(config.ValidFormats, po.format) {
				return fmt.Errorf("%s %q: must be one of %v", config.ErrInvalidFormat, po.format, config.ValidFormats)
			}
			entries, loc, err := loadPlan(cmd, opts)
			if err != nil {
				return err
			}
			if po.limit > 0 && len(entries) > po.limit {
				entries = entries[:po.limit]
			}
			if po.format == config.FormatJSON {
				return writePlanJSON(cmd.OutOrStdout(), entries)
			}
			return writePlanText(cmd.OutOrStdout(), entries, loc)
		},
	}

	cmd.Flags().StringVar(&po.format, config.FlagFormat, config.FormatText, config.FlagDescFormat)
	cmd.Flags().IntVar(&po.limit, config.FlagLimit, 0, config.FlagDescLimit)
	return cmd
}

func loadPlan(cmd *cobra.Command, opts *RootOptions) ([]model.PlanEntry, *time.Location, error) {
	loc, err := opts.Settings.Location()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(opts.Settings.Store)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = st.Close() }()

	persons, err := st.ListPersons(cmd.Context())
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", config.ErrPersonsList, err)
	}

	agg := engine.NewAggregator()
	if _, err := agg.Recompute(persons, opts.clock().Now().In(loc)); err != nil {
		return nil, nil, err
	}
	return agg.Plan(), loc, nil
}

func writePlanJSON(w io.Writer, entries []model.PlanEntry) error {
	if entries == nil {
		entries = []model.PlanEntry{}
	}
	return writeJSON(w, entries)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePlanText(w io.Writer, entries []model.PlanEntry, loc *time.Location) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, config.PlanEmpty)
		return err
	}

	tw := tabwriter.NewWriter(w, config.TabMinWidth, config.TabWidth, config.TabPadding, ' ', 0)
	fmt.Fprintln(tw, config.PlanHeader)
	for _, e := range entries {
		fmt.Fprintf(tw, config.PlanRowFormat,
			e.FireAt.In(loc).Format(config.DateFormatDisplay),
			entryName(e),
			e.Key.Channel,
			e.DaysBefore,
			e.Key,
		)
	}
	return tw.Flush()
}

func entryName(e model.PlanEntry) string {
	switch p := e.Payload.(type) {
	case model.LocalPayload:
		return p.Name
	case model.ExternalPayload:
		return p.Name
	default:
		return config.FallbackName
	}
}
