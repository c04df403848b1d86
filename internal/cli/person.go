package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/contacts"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
)

// NewPersonCommand groups the person editing commands.
func NewPersonCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   config.CmdPerson,
		Short: config.DescPerson,
	}
	cmd.AddCommand(newPersonAddCommand(opts))
	cmd.AddCommand(newPersonListCommand(opts))
	cmd.AddCommand(newPersonDeleteCommand(opts))
	return cmd
}

type personAddOptions struct {
	name       string
	birthday   string
	daysBefore int
	channel    string
	time       string
}

func newPersonAddCommand(opts *RootOptions) *cobra.Command {
	po := &personAddOptions{}

	cmd := &cobra.Command{
		Use:   config.CmdAdd,
		Short: config.DescPersonAdd,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := po.person(cmd, opts.Settings.Reminders.Default)
			if err != nil {
				return err
			}

			h, err := newOneShotHost(opts)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			saved, err := h.svc.SavePerson(cmd.Context(), p)
			if saved.ID == "" {
				return err
			}
			if _, werr := fmt.Fprintf(cmd.OutOrStdout(), config.PersonSaved, saved.ID); werr != nil {
				return werr
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&po.name, config.FlagName, "", config.FlagDescName)
	f.StringVar(&po.birthday, config.FlagBirthday, "", config.FlagDescBirthday)
	f.IntVar(&po.daysBefore, config.FlagDaysBefore, 0, config.FlagDescDaysBefore)
	f.StringVar(&po.channel, config.FlagChannel, "", config.FlagDescChannel)
	f.StringVar(&po.time, config.FlagTime, "", config.FlagDescTime)
	return cmd
}

// person builds the person to store. Reminder flags left unset fall back to
// the default reminder; when that is disabled and no flag is set the person
// gets no reminder.
func (po *personAddOptions) person(cmd *cobra.Command, def config.DefaultReminder) (model.Person, error) {
	name := strings.TrimSpace(po.name)
	if name == "" {
		return model.Person{}, errors.New(config.ErrNameRequired)
	}
	p := model.Person{DisplayName: name}

	if po.birthday != "" {
		b, err := contacts.ParseBirthday(po.birthday)
		if err != nil {
			return model.Person{}, err
		}
		p.Birthday = &b
	}

	f := cmd.Flags()
	set := false
	if f.Changed(config.FlagDaysBefore) {
		def.DaysBefore, set = po.daysBefore, true
	}
	if f.Changed(config.FlagChannel) {
		def.Channel, set = po.channel, true
	}
	if f.Changed(config.FlagTime) {
		def.TimeOfDay, set = po.time, true
	}
	if !def.Enabled && !set {
		return p, nil
	}

	tod, err := config.ParseTimeOfDay(def.TimeOfDay)
	if err != nil {
		return model.Person{}, err
	}
	r, err := model.NewReminder(def.DaysBefore, model.Channel(def.Channel), tod)
	if err != nil {
		return model.Person{}, err
	}
	p.Reminders = []model.Reminder{r}
	return p, nil
}

func newPersonListCommand(opts *RootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   config.CmdList,
		Short: config.DescPersonList,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(config.ValidFormats, format) {
				return fmt.Errorf("%s %q: must be one of %v", config.ErrInvalidFormat, format, config.ValidFormats)
			}
			h, err := newOneShotHost(opts)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			persons, err := h.svc.Persons(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", config.ErrPersonsList, err)
			}
			if format == config.FormatJSON {
				if persons == nil {
					persons = []model.Person{}
				}
				return writeJSON(cmd.OutOrStdout(), persons)
			}
			return writePersonsText(cmd.OutOrStdout(), persons)
		},
	}

	cmd.Flags().StringVar(&format, config.FlagFormat, config.FormatText, config.FlagDescFormat)
	return cmd
}

func writePersonsText(w io.Writer, persons []model.Person) error {
	if len(persons) == 0 {
		_, err := fmt.Fprintln(w, config.PersonEmpty)
		return err
	}

	tw := tabwriter.NewWriter(w, config.TabMinWidth, config.TabWidth, config.TabPadding, ' ', 0)
	fmt.Fprintln(tw, config.PersonHeader)
	for _, p := range persons {
		birthday := ""
		if p.Birthday != nil {
			birthday = p.Birthday.String()
		}
		fmt.Fprintf(tw, config.PersonRowFormat, p.ID, p.FullName(), birthday, len(p.Reminders))
	}
	return tw.Flush()
}

func newPersonDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   config.CmdDelete + " <id>",
		Short: config.DescPersonDel,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := newOneShotHost(opts)
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			if err := h.svc.DeletePerson(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), config.PersonDeleted, args[0])
			return err
		},
	}
}
