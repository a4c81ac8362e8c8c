package dataset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const DefaultSheetsBaseURL = "https://sheets.googleapis.com"

// SheetsClient reads a sheet range through the Google Sheets API v4
// "values" endpoint and hands back the raw grid.
type SheetsClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewSheetsClient(baseURL, apiKey string, timeout time.Duration) *SheetsClient {
	if baseURL == "" {
		baseURL = DefaultSheetsBaseURL
	}
	return &SheetsClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *SheetsClient) endpoint(sheetID, sheetName string) string {
	q := url.Values{}
	q.Set("majorDimension", "ROWS")
	if c.APIKey != "" {
		q.Set("key", c.APIKey)
	}
	return fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?%s",
		c.BaseURL, url.PathEscape(sheetID), url.PathEscape(sheetName), q.Encode())
}

func (c *SheetsClient) fetch(ctx context.Context, sheetID, sheetName string) (table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(sheetID, sheetName), nil)
	if err != nil {
		return table{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return table{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return table{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = resp.Status
		}
		return table{}, fmt.Errorf("%w: sheets api status %d: %s", ErrFetchFailed, resp.StatusCode, msg)
	}

	if !gjson.ValidBytes(body) {
		return table{}, fmt.Errorf("%w: response is not valid JSON", ErrMalformed)
	}

	// An empty range comes back without a "values" key.
	values := gjson.GetBytes(body, "values")
	if !values.Exists() {
		return table{}, nil
	}
	if !values.IsArray() {
		return table{}, fmt.Errorf("%w: values is not an array", ErrMalformed)
	}

	var grid [][]string
	for _, row := range values.Array() {
		var cells []string
		for _, cell := range row.Array() {
			cells = append(cells, cell.String())
		}
		grid = append(grid, cells)
	}
	return tableFromGrid(grid), nil
}
