package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Table is implemented by results that render as rows.
type Table interface {
	Headers() []string
	Rows() [][]string
}

// Rows is an ad-hoc Table.
type Rows struct {
	Header []string
	Data   [][]string
}

// NewRows creates an empty table with the given headers.
func NewRows(headers ...string) *Rows {
	return &Rows{Header: headers, Data: [][]string{}}
}

// Add appends a row.
func (r *Rows) Add(cells ...string) { r.Data = append(r.Data, cells) }

func (r *Rows) Headers() []string { return r.Header }
func (r *Rows) Rows() [][]string  { return r.Data }

// WriteTable renders t without borders, one space-padded column per header.
func WriteTable(w io.Writer, t Table) error {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Headers())
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(true)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("  ")
	tw.SetNoWhiteSpace(true)
	tw.AppendBulk(t.Rows())
	tw.Render()
	return nil
}
