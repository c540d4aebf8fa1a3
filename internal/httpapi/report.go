package httpapi

import (
	"bytes"
	"encoding/csv"
	"html/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"salonpos/backend/internal/domain"
)

type reportLine struct {
	Section string
	Key     string
	Label   string
	Value   decimal.Decimal
}

func reportLines(m domain.FinancialMetrics) []reportLine {
	return []reportLine{
		{"summary", "total_sales", "Total sales", m.TotalSales},
		{"summary", "cost_of_sales", "Cost of sales", m.CostOfSales},
		{"summary", "total_expenses", "Expenses", m.TotalExpenses},
		{"summary", "net_profit", "Net profit", m.NetProfit},
		{"summary", "total_profit", "Total profit", m.TotalProfit},
		{"summary", "cash_balance", "Cash balance", m.CashBalance},
		{"summary", "inventory_cost", "Inventory at cost", m.InventoryCost},
		{"payment", "cash", "Cash", m.CashPayments},
		{"payment", "card", "Card", m.CardPayments},
		{"payment", "transfer", "Transfer", m.TransferPayments},
		{"credit", "credit_total", "Credit sold", m.CreditTotal},
		{"credit", "credit_paid", "Credit collected", m.CreditPaid},
		{"credit", "credit_pending", "Credit pending", m.CreditPending},
		{"credit", "credit_profit", "Realized credit profit", m.CreditProfit},
	}
}

func formatMoney(p *message.Printer, v decimal.Decimal) string {
	return p.Sprint(number.Decimal(v.InexactFloat64(), number.Scale(2)))
}

// metricsToCSV keeps the raw decimal next to the localized figure so the file
// stays machine readable whatever the locale's separators are.
func metricsToCSV(resp domain.MetricsResponse, p *message.Printer) (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	records := [][]string{
		{"section", "key", "value", "formatted"},
		{"range", "start", resp.Start, resp.Start},
		{"range", "end", resp.End, resp.End},
	}
	for _, line := range reportLines(resp.Metrics) {
		records = append(records, []string{line.Section, line.Key, line.Value.StringFixed(2), formatMoney(p, line.Value)})
	}
	if err := writer.WriteAll(records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var metricsHTMLTmpl = template.Must(template.New("metrics-report").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Report {{.Start}} - {{.End}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px; font-size: 13px; }
    h2, h3 { margin-bottom: 4px; }
  </style>
</head>
<body>
  <h2>Report {{.Start}} - {{.End}}</h2>
  {{range .Sections}}
  <h3>{{.Title}}</h3>
  <table>
    <tbody>{{range .Rows}}<tr><td>{{.Label}}</td><td style="text-align:right;">{{.Amount}}</td></tr>{{end}}</tbody>
  </table>
  {{end}}
</body>
</html>
`))

type htmlRow struct {
	Label  string
	Amount string
}

type htmlSection struct {
	Title string
	Rows  []htmlRow
}

var sectionTitles = map[string]string{
	"summary": "Summary",
	"payment": "By payment method",
	"credit":  "Credits",
}

func metricsToPrintableHTML(resp domain.MetricsResponse, p *message.Printer) string {
	var sections []htmlSection
	for _, line := range reportLines(resp.Metrics) {
		title := sectionTitles[line.Section]
		if len(sections) == 0 || sections[len(sections)-1].Title != title {
			sections = append(sections, htmlSection{Title: title})
		}
		last := &sections[len(sections)-1]
		last.Rows = append(last.Rows, htmlRow{Label: line.Label, Amount: formatMoney(p, line.Value)})
	}

	var buf bytes.Buffer
	err := metricsHTMLTmpl.Execute(&buf, map[string]any{
		"Start":    resp.Start,
		"End":      resp.End,
		"Sections": sections,
	})
	if err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
