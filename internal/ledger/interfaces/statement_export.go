package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	ledger "municipal-portal/internal/ledger/domain"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// BuildStatementPDF renders an account statement as a PDF.
func BuildStatementPDF(stmt *ledger.Statement) ([]byte, error) {
	loc := stmt.Period.Location()
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Statement %s %s", stmt.AccountID, stmt.Period.Token()), false)
	pdf.SetFont("Arial", "B", 14)
	pdf.AddPage()

	pdf.Cell(0, 8, "Municipal Account Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Account: %s", stmt.AccountID),
		fmt.Sprintf("Service: %s", stmt.Scope.Label()),
		fmt.Sprintf("Period: %s to %s", stmt.Period.Start.Format(dateLayout), stmt.Period.End.Format(dateLayout)),
		fmt.Sprintf("Aging as of: %s", stmt.AsOf.In(loc).Format(dateLayout)),
		fmt.Sprintf("Generated: %s", stmt.GeneratedAt.UTC().Format(time.RFC3339)),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, "Summary")
	pdf.Ln(6)
	pdf.SetFont("Arial", "", 10)
	summaryRow(pdf, "Opening balance", stmt.Balance.Opening)
	summaryRow(pdf, "Charges", stmt.Balance.Charges)
	summaryRow(pdf, "Payments", stmt.Balance.Settlements)
	summaryRow(pdf, "Closing balance", stmt.Balance.Closing)
	if !stmt.CreditBalance.IsZero() {
		summaryRow(pdf, "Credit balance", stmt.CreditBalance)
	}

	if len(stmt.PerService) > 0 {
		pdf.Ln(4)
		tableHeader(pdf, []string{"Service", "Opening", "Charges", "Payments", "Closing"}, []float64{50, 32, 32, 32, 32})
		for _, sb := range stmt.PerService {
			pdf.CellFormat(50, 6, string(sb.Service), "1", 0, "L", false, 0, "")
			for _, m := range []ledger.Money{sb.Balance.Opening, sb.Balance.Charges, sb.Balance.Settlements, sb.Balance.Closing} {
				pdf.CellFormat(32, 6, m.String(), "1", 0, "R", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	pdf.Ln(4)
	tableHeader(pdf, []string{"Bill", "Service", "Due", "Status", "Amount"}, []float64{20, 50, 30, 30, 32})
	for _, c := range stmt.Charges {
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", c.ID), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, string(c.Service), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, formatDay(c.DueDate, loc), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, string(c.Status), "1", 0, "C", false, 0, "")
		pdf.CellFormat(32, 6, c.Amount.String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	tableHeader(pdf, []string{"Date", "Service", "Method", "Reference", "Amount"}, []float64{30, 50, 25, 45, 32})
	for _, s := range stmt.Settlements {
		pdf.CellFormat(30, 6, s.CreatedAt.In(loc).Format(dateLayout), "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, string(s.Service), "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, s.Method, "1", 0, "C", false, 0, "")
		pdf.CellFormat(45, 6, s.Reference, "1", 0, "L", false, 0, "")
		pdf.CellFormat(32, 6, s.Amount.String(), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	tableHeader(pdf, []string{"Current", "30 days", "60 days", "90 days", "120+ days"}, []float64{36, 36, 36, 36, 36})
	for _, m := range []ledger.Money{stmt.Aging.Current, stmt.Aging.Days30, stmt.Aging.Days60, stmt.Aging.Days90, stmt.Aging.Days120Plus} {
		pdf.CellFormat(36, 6, m.String(), "1", 0, "R", false, 0, "")
	}
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func summaryRow(pdf *gofpdf.Fpdf, label string, amount ledger.Money) {
	pdf.CellFormat(60, 6, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, amount.String(), "", 0, "R", false, 0, "")
	pdf.Ln(-1)
}

func tableHeader(pdf *gofpdf.Fpdf, titles []string, widths []float64) {
	pdf.SetFont("Arial", "B", 10)
	for i, title := range titles {
		pdf.CellFormat(widths[i], 6, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
}

// BuildStatementXLSX renders an account statement as a workbook with summary,
// charges and payments sheets.
func BuildStatementXLSX(stmt *ledger.Statement) ([]byte, error) {
	loc := stmt.Period.Location()
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	chargesSheet := "charges"
	paymentsSheet := "payments"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(chargesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(paymentsSheet); err != nil {
		return nil, err
	}

	rows := [][]any{
		{"Municipal Account Statement"},
		{},
		{"Account", stmt.AccountID},
		{"Service", stmt.Scope.Label()},
		{"Period", stmt.Period.Token()},
		{"As of", stmt.AsOf.In(loc).Format(dateLayout)},
		{"Opening", stmt.Balance.Opening.Float64()},
		{"Charges", stmt.Balance.Charges.Float64()},
		{"Payments", stmt.Balance.Settlements.Float64()},
		{"Closing", stmt.Balance.Closing.Float64()},
		{"Credit", stmt.CreditBalance.Float64()},
		{},
		{"Current", stmt.Aging.Current.Float64()},
		{"30 days", stmt.Aging.Days30.Float64()},
		{"60 days", stmt.Aging.Days60.Float64()},
		{"90 days", stmt.Aging.Days90.Float64()},
		{"120+ days", stmt.Aging.Days120Plus.Float64()},
		{},
		{"Service", "Opening", "Charges", "Payments", "Closing"},
	}
	for _, sb := range stmt.PerService {
		rows = append(rows, []any{
			string(sb.Service),
			sb.Balance.Opening.Float64(),
			sb.Balance.Charges.Float64(),
			sb.Balance.Settlements.Float64(),
			sb.Balance.Closing.Float64(),
		})
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return nil, err
	}

	rows = [][]any{{"Bill", "Service", "Period start", "Period end", "Due", "Status", "Amount"}}
	for _, c := range stmt.Charges {
		rows = append(rows, []any{
			c.ID,
			string(c.Service),
			formatDay(c.BillingPeriodStart, loc),
			formatDay(c.BillingPeriodEnd, loc),
			formatDay(c.DueDate, loc),
			string(c.Status),
			c.Amount.Float64(),
		})
	}
	if err := writeRows(f, chargesSheet, rows); err != nil {
		return nil, err
	}

	rows = [][]any{{"Payment", "Date", "Service", "Method", "Reference", "Amount"}}
	for _, s := range stmt.Settlements {
		rows = append(rows, []any{
			s.ID,
			s.CreatedAt.In(loc).Format(dateLayout),
			string(s.Service),
			s.Method,
			s.Reference,
			s.Amount.Float64(),
		})
	}
	if err := writeRows(f, paymentsSheet, rows); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
