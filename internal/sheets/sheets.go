package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the Sheets v4 REST API. Authentication is a static bearer
// token applied per request; token refresh is outside this tool's scope.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// ListSheetNames returns the sheet tab titles of the spreadsheet, in order.
func (c *Client) ListSheetNames(ctx context.Context, spreadsheetID string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=sheets.properties.title",
		c.baseURL, url.PathEscape(spreadsheetID))

	var meta struct {
		Sheets []struct {
			Properties struct {
				Title string `json:"title"`
			} `json:"properties"`
		} `json:"sheets"`
	}

	if err := c.getJSON(ctx, endpoint, &meta); err != nil {
		return nil, fmt.Errorf("fetching spreadsheet metadata: %w", err)
	}

	names := make([]string, 0, len(meta.Sheets))
	for _, sheet := range meta.Sheets {
		names = append(names, sheet.Properties.Title)
	}
	return names, nil
}

// ReadRange fetches the cell values for an A1-style range expression. Cells
// come back as strings; rows may be ragged (trailing empty cells omitted).
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rangeExpr string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rangeExpr))

	var result struct {
		Values [][]interface{} `json:"values"`
	}

	if err := c.getJSON(ctx, endpoint, &result); err != nil {
		return nil, fmt.Errorf("fetching sheet values: %w", err)
	}

	rows := make([][]string, 0, len(result.Values))
	for _, raw := range result.Values {
		row := make([]string, 0, len(raw))
		for _, cell := range raw {
			if cell == nil {
				row = append(row, "")
				continue
			}
			if s, ok := cell.(string); ok {
				row = append(row, s)
			} else {
				row = append(row, fmt.Sprintf("%v", cell))
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCell sets a single cell, addressed A1-style within the named sheet.
func (c *Client) WriteCell(ctx context.Context, spreadsheetID, sheetName, cellRef, value string) error {
	rangeExpr := fmt.Sprintf("%s!%s", sheetName, cellRef)
	endpoint := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?valueInputOption=RAW",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rangeExpr))

	payload, err := json.Marshal(map[string]interface{}{
		"range":  rangeExpr,
		"values": [][]string{{value}},
	})
	if err != nil {
		return fmt.Errorf("encoding cell update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building cell update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("updating cell %s: %w", rangeExpr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("updating cell %s: HTTP %d: %s", rangeExpr, resp.StatusCode, string(body))
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
