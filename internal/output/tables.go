package output

import (
	"io"
	"strconv"
	"strings"

	"github.com/jakopako/kursbot/internal/types"
	"github.com/jakopako/kursbot/internal/utils"
	"github.com/olekukonko/tablewriter"
)

const maxCellLength = 40

// WriteForms prints one table per discovered form.
func WriteForms(out io.Writer, forms []types.Form) {
	for _, f := range forms {
		io.WriteString(out, "form "+f.ID+" ("+strings.ToUpper(f.Method)+" "+f.Action+")\n")
		table := tablewriter.NewWriter(out)
		table.SetHeader([]string{"#", "Name", "ID", "Type", "Label", "Flags", "Options"})
		table.SetAutoWrapText(false)
		for _, field := range f.Fields {
			options := make([]string, 0, len(field.Options))
			for _, o := range field.Options {
				options = append(options, o.Value)
			}
			table.Append([]string{
				strconv.Itoa(field.Index),
				field.Name,
				field.ID,
				field.Type,
				utils.ShortenString(field.Label, maxCellLength),
				fieldFlags(field),
				utils.ShortenString(strings.Join(options, ", "), maxCellLength),
			})
		}
		table.SetBorder(false)
		table.Render()
	}
}

func fieldFlags(f types.FormField) string {
	flags := []string{}
	if f.Required {
		flags = append(flags, "required")
	}
	if f.Disabled {
		flags = append(flags, "disabled")
	}
	if f.ReadOnly {
		flags = append(flags, "readonly")
	}
	return strings.Join(flags, ",")
}

// WriteButtons prints the clickable controls of a page.
func WriteButtons(out io.Writer, buttons []types.ButtonDescriptor) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Caption", "Type", "Name", "ID", "Class"})
	table.SetAutoWrapText(false)
	for _, b := range buttons {
		table.Append([]string{
			strconv.Itoa(b.Index),
			utils.ShortenString(b.Caption(), maxCellLength),
			b.Type,
			b.Name,
			b.ID,
			b.ClassName,
		})
	}
	table.SetBorder(false)
	table.Render()
}

// WriteCourseRows prints the rows of a course listing.
func WriteCourseRows(out io.Writer, rows []types.CourseRow) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Row", "Day", "Time", "Booking control"})
	table.SetAutoWrapText(false)
	for _, r := range rows {
		control := r.BookingSelector
		if control == "" {
			control = "-"
		}
		table.Append([]string{strconv.Itoa(r.Index), r.RowID, r.Day, r.Time, control})
	}
	table.SetBorder(false)
	table.Render()
}
