// Package google stores the contribution history in a Google Sheet through
// the Sheets v4 API, authenticated with a service account or a saved OAuth
// user token.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saveup/internal/core"
	"saveup/internal/log"
	ports "saveup/internal/sheets"
)

var _ ports.ContributionStore = (*Client)(nil)

// Config selects the spreadsheet and the credentials. Service-account JSON
// wins over its file. Without either, an OAuth client file with a saved token
// is used, and failing that GOOGLE_APPLICATION_CREDENTIALS.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
	OAuthClientFile string
	OAuthTokenFile  string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	logger        *log.Logger
}

// New creates a Sheets client for cfg.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	id := strings.TrimSpace(cfg.SpreadsheetID)
	if id == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Contributions"
	}

	opts, err := clientOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "Creating Google Sheets service",
		"spreadsheet_id", id,
		"sheet", sheet,
		"oauth", usesOAuth(cfg))

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: id, sheet: sheet, logger: logger}, nil
}

func usesOAuth(cfg Config) bool {
	return strings.TrimSpace(cfg.CredentialsJSON) == "" &&
		strings.TrimSpace(cfg.CredentialsFile) == "" &&
		strings.TrimSpace(cfg.OAuthClientFile) != ""
}

func clientOptions(ctx context.Context, cfg Config) ([]goption.ClientOption, error) {
	if usesOAuth(cfg) {
		hc, err := oauthHTTPClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return []goption.ClientOption{goption.WithHTTPClient(hc)}, nil
	}
	creds, err := credentials(cfg)
	if err != nil {
		return nil, err
	}
	return []goption.ClientOption{
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

func credentials(cfg Config) ([]byte, error) {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []byte(js), nil
	}
	path := strings.TrimSpace(cfg.CredentialsFile)
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_JSON, GOOGLE_CREDENTIALS_FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// AppendContributions appends one row per contribution, writing the header
// first when the sheet is empty.
func (c *Client) AppendContributions(ctx context.Context, cs []core.Contribution) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if len(cs) == 0 {
		return "", nil
	}

	existing, err := c.values(ctx, c.sheet+"!A1:A1")
	if err != nil {
		return "", err
	}

	rows := make([][]any, 0, len(cs)+1)
	if len(existing) == 0 {
		rows = append(rows, header)
	}
	for _, ct := range cs {
		rows = append(rows, toRow(ct))
	}

	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.sheet+"!A:C", &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	c.logger.DebugContext(ctx, "Appended rows", "rows", len(rows), "range", ref)
	return ref, nil
}

// ListContributions reads every data row of the sheet.
func (c *Client) ListContributions(ctx context.Context) ([]core.Contribution, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	values, err := c.values(ctx, c.sheet+"!A:C")
	if err != nil {
		return nil, err
	}
	out, skipped := parseRows(values)
	if skipped > 0 {
		c.logger.WarnContext(ctx, "Skipped unreadable rows", "sheet", c.sheet, "skipped", skipped)
	}
	return out, nil
}

func (c *Client) values(ctx context.Context, rng string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}
