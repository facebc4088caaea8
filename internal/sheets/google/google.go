package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "feeledger/internal/sheets"
)

// Config selects the spreadsheet and the credentials used to reach it.
// Sheet names are base names; the year is prefixed automatically.
type Config struct {
	SpreadsheetID   string
	ReceiptsSheet   string
	ReportSheet     string
	CredentialsFile string
	CredentialsJSON string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	receiptsBase  string
	reportBase    string

	mu     sync.Mutex
	sheets map[string]bool
}

// Ensure interface conformance
var (
	_ ports.ReceiptWriter = (*Client)(nil)
	_ ports.ReportWriter  = (*Client)(nil)
)

var receiptHeader = []any{"Date", "Kind", "Reference", "Organization", "Student", "Description", "Method", "Amount", "Subtotal", "VAT"}

var monthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// New creates a Sheets client from cfg using service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, spreadsheetID, cfg), nil
}

func newClient(svc *gsheet.Service, spreadsheetID string, cfg Config) *Client {
	receipts := strings.TrimSpace(cfg.ReceiptsSheet)
	if receipts == "" {
		receipts = "Receipts"
	}
	report := strings.TrimSpace(cfg.ReportSheet)
	if report == "" {
		report = "Report"
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		receiptsBase:  receipts,
		reportBase:    report,
		sheets:        make(map[string]bool),
	}
}

// newSheetsService prefers inline JSON credentials over a credentials file.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	var credentialsJSON []byte
	var err error

	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", cfg.CredentialsFile)
		credentialsJSON, err = os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created", "credentials_size", len(credentialsJSON))
	return service, nil
}

// AppendReceipt appends r to the receipt journal of the year of its date.
func (c *Client) AppendReceipt(ctx context.Context, r ports.ReceiptRow) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := yearPrefixedName(c.receiptsBase, r.Date.Year())
	created, err := c.ensureSheet(ctx, sheet)
	if err != nil {
		return "", err
	}

	rows := [][]any{receiptValues(r)}
	if created {
		rows = append([][]any{receiptHeader}, rows...)
	}

	vr := &gsheet.ValueRange{Values: rows}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, a1(sheet, "A:J"), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to append receipt to sheet %s: %w", sheet, err)
	}

	ref := a1(sheet, "A:J")
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// WriteYearReport clears the report sheet of the organization and writes the
// summary followed by the monthly trends.
func (c *Client) WriteYearReport(ctx context.Context, r ports.YearReport) (string, error) {
	if r.OrganizationID == "" {
		return "", errors.New("report has no organization")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := reportSheetName(c.reportBase, r.Summary.Year, r.OrganizationID)
	if _, err := c.ensureSheet(ctx, sheet); err != nil {
		return "", err
	}

	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(sheet, "A:D"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("failed to clear report sheet %s: %w", sheet, err)
	}

	values := reportValues(r)
	rng := a1(sheet, fmt.Sprintf("A1:D%d", len(values)))
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to write report sheet %s: %w", sheet, err)
	}
	return rng, nil
}

// ensureSheet adds the named sheet when the spreadsheet lacks it and reports
// whether it was created.
func (c *Client) ensureSheet(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sheets[name] {
		return false, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields(googleapi.Field("sheets.properties.title")).
		Context(ctx).Do()
	if err != nil {
		return false, fmt.Errorf("failed to list sheets: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			c.sheets[s.Properties.Title] = true
		}
	}
	if c.sheets[name] {
		return false, nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, fmt.Errorf("failed to add sheet %s: %w", name, err)
	}
	c.sheets[name] = true

	slog.InfoContext(ctx, "Created sheet", "sheet", name)
	return true, nil
}

func receiptValues(r ports.ReceiptRow) []any {
	amount := r.Amount
	if r.Kind == ports.RowCancellation {
		amount = amount.Neg()
	}
	return []any{
		r.Date.String(),
		string(r.Kind),
		r.Reference,
		r.OrganizationID,
		r.StudentID,
		r.Description,
		string(r.Method),
		amount.String(),
		r.Subtotal.String(),
		r.VATAmount.String(),
	}
}

func reportValues(r ports.YearReport) [][]any {
	s := r.Summary
	out := [][]any{
		{"Organization", r.OrganizationID, "Year", s.Year},
		{"Total income", s.TotalIncome.String()},
		{"Fee income", s.FeeIncome.String()},
		{"Total expense", s.TotalExpense.String()},
		{"Net income", s.NetIncome.String()},
		{"Collected", s.CollectedAmount.String()},
		{"Pending", s.PendingAmount.String()},
		{"Overdue", s.OverdueAmount.String()},
		{"Collection rate", strconv.FormatInt(s.CollectionRate, 10) + "%"},
		{},
		{"Month", "Income", "Expense", "Net"},
	}
	for _, t := range r.Trends {
		if t.Month < 1 || t.Month > 12 {
			continue
		}
		out = append(out, []any{
			monthNames[t.Month-1],
			t.Income.String(),
			t.Expense.String(),
			t.Income.Sub(t.Expense).String(),
		})
	}
	out = append(out, []any{"Generated", time.Now().UTC().Format(time.RFC3339)})
	return out
}

// a1 quotes the sheet name so names with spaces resolve.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

func reportSheetName(base string, year int, orgID string) string {
	return yearPrefixedName(base, year) + " " + orgID
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
