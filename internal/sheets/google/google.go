// Package google stores ledgers in a Google Sheets spreadsheet, one row per
// user: column A holds the user id, B the income and C the expense list as a
// JSON array.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/core"
	"saldo/internal/store"
)

const (
	backendName      = "sheets"
	DefaultSheetName = "Ledgers"
	headerUserID     = "user_id"

	rowCacheTTL = 5 * time.Minute
)

type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
	OAuthClientJSON    string
	OAuthTokenJSON     string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string

	// Row numbers are looked up with a full column read; remember them for a
	// while so saves of a known user cost one call.
	mu       sync.Mutex
	rows     map[string]int
	rowsTill time.Time
	now      func() time.Time
}

var _ store.Store = (*Client)(nil)

// New creates a Sheets-backed store. OAuth credentials win when both a
// client and a token are configured; otherwise a service account is used.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

func newClient(svc *gsheet.Service, spreadsheetID, sheet string) *Client {
	sheet = strings.TrimSpace(sheet)
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
		rows:          map[string]int{},
		now:           time.Now,
	}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	if strings.TrimSpace(cfg.OAuthClientJSON) != "" && strings.TrimSpace(cfg.OAuthTokenJSON) != "" {
		return newOAuthService(ctx, cfg)
	}

	var credentialsJSON []byte
	switch {
	case strings.TrimSpace(cfg.ServiceAccountJSON) != "":
		slog.InfoContext(ctx, "Using inline service account credentials", "component", "sheets")
		credentialsJSON = []byte(cfg.ServiceAccountJSON)
	case strings.TrimSpace(cfg.ServiceAccountFile) != "":
		slog.InfoContext(ctx, "Reading service account credentials", "component", "sheets", "path", cfg.ServiceAccountFile)
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_OAUTH_CLIENT_JSON with GOOGLE_OAUTH_TOKEN_JSON)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

func newOAuthService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	oc, err := oauthgoogle.ConfigFromJSON([]byte(cfg.OAuthClientJSON), gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(cfg.OAuthTokenJSON), &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	// The token source refreshes through the pooled client.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	httpClient := oauth2.NewClient(ctx, oc.TokenSource(ctx, &tok))
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created with OAuth token", "component", "sheets")
	return svc, nil
}

// newHTTPClientWithPooling returns an HTTP client tuned for the Sheets API
// with connection reuse and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (c *Client) Load(ctx context.Context, userID string) (core.Ledger, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrEmptyUser)
	}
	if c.svc == nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, errors.New("sheets service not initialized"))
	}
	rng := fmt.Sprintf("%s!A:C", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, fmt.Errorf("read %s: %w", rng, err))
	}
	c.rememberRows(resp.Values)
	i := findRow(resp.Values, userID)
	if i < 0 {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, store.ErrNotFound)
	}
	l, err := rowToLedger(resp.Values[i])
	if err != nil {
		return core.Ledger{}, store.Wrap(store.OpLoad, backendName, userID, err)
	}
	return l, nil
}

func (c *Client) Save(ctx context.Context, userID string, l core.Ledger) error {
	if strings.TrimSpace(userID) == "" {
		return store.Wrap(store.OpSave, backendName, userID, store.ErrEmptyUser)
	}
	if c.svc == nil {
		return store.Wrap(store.OpSave, backendName, userID, errors.New("sheets service not initialized"))
	}
	row, err := ledgerToRow(userID, l)
	if err != nil {
		return store.Wrap(store.OpSave, backendName, userID, err)
	}
	if err := c.writeRow(ctx, userID, row); err != nil {
		c.invalidateRows()
		return store.Wrap(store.OpSave, backendName, userID, err)
	}
	slog.InfoContext(ctx, "Ledger saved to Google Sheets",
		"component", "sheets",
		"user_id", userID,
		"sheet", c.sheet,
		"expense_count", l.Len())
	return nil
}

func (c *Client) writeRow(ctx context.Context, userID string, row []any) error {
	n, err := c.rowNumber(ctx, userID)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	if n > 0 {
		rng := rowRange(c.sheet, n)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}
	rng := fmt.Sprintf("%s!A:C", c.sheet)
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	// The appended row number is not known without another read.
	c.invalidateRows()
	return nil
}

// rowNumber returns the 1-based row holding userID, or 0 when absent.
func (c *Client) rowNumber(ctx context.Context, userID string) (int, error) {
	c.mu.Lock()
	if c.now().Before(c.rowsTill) {
		n, ok := c.rows[userID]
		c.mu.Unlock()
		if ok {
			return n, nil
		}
	} else {
		c.mu.Unlock()
	}

	rng := fmt.Sprintf("%s!A:A", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", rng, err)
	}
	c.rememberRows(resp.Values)
	return findRow(resp.Values, userID) + 1, nil
}

func (c *Client) rememberRows(values [][]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rowIndex(values)
	c.rowsTill = c.now().Add(rowCacheTTL)
}

func (c *Client) invalidateRows() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rowsTill = time.Time{}
}

func rowRange(sheet string, n int) string {
	return fmt.Sprintf("%s!A%d:C%d", sheet, n, n)
}

func cell(row []any, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

// findRow returns the 0-based index of the row whose first cell is userID,
// or -1. A header row is never matched.
func findRow(values [][]any, userID string) int {
	for i, row := range values {
		id := cell(row, 0)
		if id == "" || id == headerUserID {
			continue
		}
		if id == userID {
			return i
		}
	}
	return -1
}

// rowIndex maps user ids to 1-based row numbers. The first occurrence wins.
func rowIndex(values [][]any) map[string]int {
	out := make(map[string]int, len(values))
	for i, row := range values {
		id := cell(row, 0)
		if id == "" || id == headerUserID {
			continue
		}
		if _, ok := out[id]; !ok {
			out[id] = i + 1
		}
	}
	return out
}

func rowToLedger(row []any) (core.Ledger, error) {
	doc := store.Document{Income: json.Number(cell(row, 1))}
	if raw := cell(row, 2); raw != "" {
		if err := json.Unmarshal([]byte(raw), &doc.Expenses); err != nil {
			return core.Ledger{}, fmt.Errorf("%w: expenses cell: %v", store.ErrBadPayload, err)
		}
	}
	return doc.Ledger()
}

func ledgerToRow(userID string, l core.Ledger) ([]any, error) {
	doc := store.NewDocument(l)
	expenses, err := json.Marshal(doc.Expenses)
	if err != nil {
		return nil, fmt.Errorf("encode expenses: %w", err)
	}
	return []any{userID, doc.Income.String(), string(expenses)}, nil
}
