// Package fetch downloads a course seat page and extracts its seating numbers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/marcin-skalski/seatwatch/internal/seats"
)

// seatingSummary identifies the seating table among the page's layout tables.
const seatingSummary = "This layout table is used to present the seating numbers."

const maxBodyBytes = 2 << 20

var (
	ErrSeatingTableNotFound = errors.New("seating table not found")
	ErrMalformedSeating     = errors.New("malformed seating row")
)

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s", e.StatusCode, e.URL)
}

type Client struct {
	http      *http.Client
	userAgent string
	logger    *slog.Logger
}

func NewClient(timeout time.Duration, userAgent string, logger *slog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch returns the current seating numbers of the page at target.
func (c *Client) Fetch(ctx context.Context, target string) (seats.Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return seats.Reading{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return seats.Reading{}, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("fetched seat page", "url", target, "status", resp.StatusCode, "elapsed", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return seats.Reading{}, &HTTPError{StatusCode: resp.StatusCode, URL: target}
	}

	return Parse(io.LimitReader(resp.Body, maxBodyBytes))
}

// Validate checks that target serves a page with a seating table.
func (c *Client) Validate(ctx context.Context, target string) error {
	_, err := c.Fetch(ctx, target)
	return err
}

// Parse extracts capacity, actual and remaining from the second row of the
// seating table.
func Parse(r io.Reader) (seats.Reading, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return seats.Reading{}, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find("table.datadisplaytable").FilterFunction(func(_ int, s *goquery.Selection) bool {
		summary, _ := s.Attr("summary")
		return strings.TrimSpace(summary) == seatingSummary
	}).First()
	if table.Length() == 0 {
		return seats.Reading{}, ErrSeatingTableNotFound
	}

	row := table.Find("tr").Eq(1)
	cells := row.Find("td")
	if cells.Length() < 3 {
		return seats.Reading{}, fmt.Errorf("%w: want 3 cells, got %d", ErrMalformedSeating, cells.Length())
	}

	vals := make([]int, 3)
	for i := range vals {
		text := strings.TrimSpace(cells.Eq(i).Text())
		n, err := strconv.Atoi(text)
		if err != nil {
			return seats.Reading{}, fmt.Errorf("%w: cell %d %q", ErrMalformedSeating, i, text)
		}
		vals[i] = n
	}

	return seats.Reading{Capacity: vals[0], Actual: vals[1], Remaining: vals[2]}, nil
}
