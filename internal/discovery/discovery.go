// Package discovery enumerates the meets listed on the upstream search page.
package discovery

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/xc-results-crawler/internal/normalize"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

// Config controls listing traversal.
type Config struct {
	BaseURL     string
	PageStagger time.Duration
}

// Discoverer walks every listing page and returns the meets found.
type Discoverer struct {
	fetcher xc.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New constructs a Discoverer.
func New(fetcher xc.Fetcher, cfg Config, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Discoverer{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger.Named("discovery"),
	}
}

// PageURL returns the listing URL for a 1-based page number.
func (d *Discoverer) PageURL(page int) string {
	return fmt.Sprintf("%s/results_search_page.html?page=%d&with_sports=xc", d.cfg.BaseURL, page)
}

// Discover fetches the first listing page, reads the page count, then
// fetches the remaining pages concurrently. A failure on the first page is
// returned; failures on later pages are logged and those meets are missing
// from the result.
func (d *Discoverer) Discover(ctx context.Context) ([]xc.MeetSummary, error) {
	first, err := d.fetchPage(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("discover first page: %w", err)
	}
	pages, err := pageCount(first)
	if err != nil {
		return nil, fmt.Errorf("discover page count: %w", err)
	}
	d.logger.Info("listing discovered", zap.Int("pages", pages))

	perPage := make([][]xc.MeetSummary, pages)
	perPage[0] = d.parseRows(first, 1)

	g, gctx := errgroup.WithContext(ctx)
	for page := 2; page <= pages; page++ {
		g.Go(func() error {
			if err := sleepCtx(gctx, time.Duration(page-1)*d.cfg.PageStagger); err != nil {
				return err
			}
			doc, err := d.fetchPage(gctx, page)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				d.logger.Warn("listing page failed",
					zap.Int("page", page),
					zap.String("url", d.PageURL(page)),
					zap.Error(err),
				)
				return nil
			}
			perPage[page-1] = d.parseRows(doc, page)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("discover listing pages: %w", err)
	}

	var meets []xc.MeetSummary
	for _, rows := range perPage {
		meets = append(meets, rows...)
	}
	return meets, nil
}

func (d *Discoverer) fetchPage(ctx context.Context, page int) (*goquery.Document, error) {
	body, err := d.fetcher.Get(ctx, d.PageURL(page))
	if err != nil {
		return nil, fmt.Errorf("fetch listing page %d: %w", page, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &xc.ParseError{Section: "listing", Detail: err.Error()}
	}
	return doc, nil
}

// pageCount reads the second-to-last pagination entry. A listing without
// pagination is a single page.
func pageCount(doc *goquery.Document) (int, error) {
	pagination := doc.Find("ul.pagination").First()
	if pagination.Length() == 0 {
		return 1, nil
	}
	text := strings.TrimSpace(pagination.Find("li:nth-last-child(2)").First().Text())
	n, err := strconv.Atoi(text)
	if err != nil || n < 1 {
		return 0, &xc.ParseError{Section: "pagination", Detail: fmt.Sprintf("page count %q is not a positive integer", text)}
	}
	return n, nil
}

func (d *Discoverer) parseRows(doc *goquery.Document, page int) []xc.MeetSummary {
	var meets []xc.MeetSummary
	doc.Find("table tbody tr").Each(func(i int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 2 {
			d.logger.Warn("skipping short listing row", zap.Int("page", page), zap.Int("row", i))
			return
		}
		dateText := strings.TrimSpace(tds.Eq(0).Text())
		date, ok := normalize.ParseListingDate(dateText)
		if !ok {
			d.logger.Warn("skipping listing row with bad date",
				zap.Int("page", page),
				zap.Int("row", i),
				zap.String("date", dateText),
			)
			return
		}
		href := tds.Eq(1).Find("a").AttrOr("href", "")
		id, ok := normalize.MeetIDFromHref(href)
		if !ok {
			d.logger.Warn("skipping listing row without meet id",
				zap.Int("page", page),
				zap.Int("row", i),
				zap.String("href", href),
			)
			return
		}
		meets = append(meets, xc.MeetSummary{
			SourceID: id,
			Name:     normalize.CollapseSpace(tds.Eq(1).Text()),
			Date:     date,
			State:    strings.TrimSpace(tds.Eq(3).Text()),
		})
	})
	return meets
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
