package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// displayPlaces is the rounding applied to every rendered amount.
const displayPlaces = 2

type textWriter struct {
	w       io.Writer
	section *color.Color
	alert   *color.Color
}

// WriteText renders r as section headings followed by tables, amounts rounded to two decimals.
func WriteText(w io.Writer, r *Report, noColor bool) error {
	tw := &textWriter{
		w:       w,
		section: color.New(color.FgBlue, color.Underline),
		alert:   color.New(color.FgYellow, color.Bold),
	}
	if noColor {
		tw.section.DisableColor()
		tw.alert.DisableColor()
	}
	return tw.write(r)
}

func (tw *textWriter) write(r *Report) error {
	title := r.Proposal.ID
	if r.Proposal.Title != "" {
		title = fmt.Sprintf("%s (%s)", r.Proposal.Title, r.Proposal.ID)
	}
	if _, err := fmt.Fprintf(tw.w, "Proposal: %s\nRun: %s at %s\n", title, r.RunID, r.GeneratedAt.Format("2006-01-02 15:04:05 MST")); err != nil {
		return err
	}

	tw.heading("Current vote totals")
	table := tw.table("Choice", "Votes", "%")
	for _, row := range r.Totals {
		table.Append([]string{row.Label, fixed(row.Amount), fixed(row.Percentage)})
	}
	table.SetFooter([]string{"Total", fixed(r.TotalVote), ""})
	table.Render()

	tw.heading("Vote totals by chain")
	table = tw.table("Chain", "%")
	for _, row := range r.Chains {
		table.Append([]string{row.Chain, fixed(row.Percentage)})
	}
	table.Render()

	if r.Bribes == nil {
		if r.Reason != "" {
			tw.alert.Fprintln(tw.w, "\n"+r.Reason)
		}
		return nil
	}
	b := r.Bribes

	if t := r.Tracked; t != nil {
		tw.heading("Bribe pool")
		fmt.Fprintf(tw.w, "%s won %s%% (%s %s%%), pool %s %s\n",
			t.Label, fixed(t.Percentage), t.Chain, fixed(t.ChainPercentage), fixed(b.Pool), r.Unit)
	}

	tw.heading("Clawed back whale bribes")
	fmt.Fprintf(tw.w, "%s %s\n", fixed(b.ClawedBack), r.Unit)

	tw.heading("Our bribes")
	fmt.Fprintf(tw.w, "%s %s\n", fixed(b.TotalBribes), r.Unit)

	tw.heading("Bribes by voter")
	table = tw.table("Voter", "Voting power", "Choice %", "Bribe", "Whale adjustment", "Total bribe", r.Unit+" per %", "Whale")
	for _, v := range b.Voters {
		table.Append([]string{
			v.Voter,
			fixed(v.VotingPower),
			fixed(v.ChoicePercentage),
			fixed(v.RawBribe),
			fixed(v.WhaleAdjustment),
			fixed(v.FinalBribe),
			fixed(v.EffectiveRatePerPercent),
			strconv.FormatBool(v.Whale),
		})
	}
	table.Render()
	return nil
}

func (tw *textWriter) heading(name string) {
	fmt.Fprintln(tw.w)
	tw.section.Fprintln(tw.w, name)
	fmt.Fprintln(tw.w)
}

func (tw *textWriter) table(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(tw.w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(displayPlaces)
}
