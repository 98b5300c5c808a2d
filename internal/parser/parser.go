// Package parser turns a meet results page into xc domain entities.
//
// Structural problems (missing header, quick links, event section or
// results table) fail the whole meet with *xc.ParseError. Field-level
// problems never escape: the field is left nil or the row is dropped.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/xc-results-crawler/internal/metrics"
	"github.com/JakeFAU/xc-results-crawler/internal/normalize"
	"github.com/JakeFAU/xc-results-crawler/internal/xc"
)

const individualResults = "Individual Results"

var titlePattern = regexp.MustCompile(`^(.*)\s+Individual Results\s+\((.+)\)`)

// Parser extracts meets from results pages. It is safe for concurrent use.
type Parser struct {
	logger *zap.Logger
}

// New constructs a Parser.
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger.Named("parser")}
}

// Parse reads body as the results page for summary. The listing supplies
// the meet's identity fields; the page supplies everything else.
func (p *Parser) Parse(summary xc.MeetSummary, body []byte) (xc.Meet, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return xc.Meet{}, &xc.ParseError{Section: "document", Detail: err.Error()}
	}
	logger := p.logger.With(zap.Int64("meet_id", summary.SourceID))

	header := doc.Find(".xc-header-row > div > div")
	if header.Length() == 0 {
		return xc.Meet{}, &xc.ParseError{Section: "header"}
	}

	meet := xc.Meet{
		SourceID:   summary.SourceID,
		Name:       summary.Name,
		Date:       summary.Date,
		State:      summary.State,
		Sport:      xc.SportXC,
		Location:   parseLocation(header),
		Attributes: parseAttributes(header),
	}

	eventIDs, err := p.eventIDs(doc, logger)
	if err != nil {
		return xc.Meet{}, err
	}

	meet.Races = make([]xc.Race, 0, len(eventIDs))
	excluded := 0
	for _, id := range eventIDs {
		race, dropped, err := p.parseRace(doc, id, logger)
		if err != nil {
			return xc.Meet{}, err
		}
		excluded += dropped
		meet.Races = append(meet.Races, race)
	}
	metrics.ObserveRowsExcluded(excluded)

	logger.Debug("meet parsed",
		zap.Int("races", len(meet.Races)),
		zap.Int("results", meet.ResultCount()),
		zap.Int("excluded_rows", excluded),
	)
	return meet, nil
}

func parseLocation(header *goquery.Selection) *string {
	loc := normalize.CollapseSpace(header.Find("div").First().Find("div").Last().Text())
	if loc == "" {
		return nil
	}
	return &loc
}

func parseAttributes(header *goquery.Selection) map[string]string {
	attrs := make(map[string]string)
	header.ChildrenFiltered("span").Each(func(_ int, s *goquery.Selection) {
		key, value, _ := strings.Cut(s.Text(), ": ")
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}
		attrs[key] = strings.TrimSpace(value)
	})
	return attrs
}

func (p *Parser) eventIDs(doc *goquery.Document, logger *zap.Logger) ([]int64, error) {
	list := doc.Find("#quick-links-list")
	if list.Length() == 0 {
		return nil, &xc.ParseError{Section: "quick-links"}
	}
	var ids []int64
	list.Find("a").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		id, ok := normalize.EventIDFromHref(href)
		if !ok {
			logger.Warn("skipping quick link without event id", zap.String("href", href))
			return
		}
		ids = append(ids, id)
	})
	return ids, nil
}

func (p *Parser) parseRace(doc *goquery.Document, id int64, logger *zap.Logger) (xc.Race, int, error) {
	section := fmt.Sprintf("event %d", id)

	anchor := doc.Find(fmt.Sprintf(`a[name="event%d"]`, id)).First()
	if anchor.Length() == 0 {
		return xc.Race{}, 0, &xc.ParseError{Section: section, Detail: "anchor not found"}
	}
	title := findTitle(anchor)
	if title.Length() == 0 {
		return xc.Race{}, 0, &xc.ParseError{Section: section}
	}

	heading := normalize.CollapseSpace(title.Find("h3").First().Text())
	m := titlePattern.FindStringSubmatch(heading)
	if m == nil {
		return xc.Race{}, 0, &xc.ParseError{Section: section, Detail: fmt.Sprintf("unexpected title %q", heading)}
	}
	name := strings.TrimSpace(m[1])

	race := xc.Race{
		SourceEventID: id,
		Name:          name,
		Gender:        normalize.InferGender(name),
	}
	if meters, err := normalize.ParseDistance(m[2]); err != nil {
		logger.Warn("unrecognised race distance",
			zap.Int64("event_id", id),
			zap.String("distance", m[2]),
			zap.Error(err),
		)
	} else {
		race.DistanceMeters = &meters
	}

	table := findTable(title)
	if table.Length() == 0 {
		return xc.Race{}, 0, &xc.ParseError{Section: section, Detail: "results table not found"}
	}

	results, excluded := parseRows(table)
	race.Results = results
	return race, excluded, nil
}

// findTitle returns the first results title following anchor, either as a
// sibling or nested inside one.
func findTitle(anchor *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	anchor.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		candidates := sib.Filter(".custom-table-title").AddSelection(sib.Find(".custom-table-title"))
		candidates.EachWithBreak(func(_ int, c *goquery.Selection) bool {
			if strings.Contains(c.Text(), individualResults) {
				found = c
				return false
			}
			return true
		})
		return found == nil
	})
	if found == nil {
		return anchor.Slice(0, 0)
	}
	return found
}

// findTable returns the first table after title, as a sibling or inside one.
func findTable(title *goquery.Selection) *goquery.Selection {
	var found *goquery.Selection
	title.NextAll().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		if sib.Is("table") {
			found = sib
			return false
		}
		if t := sib.Find("table").First(); t.Length() > 0 {
			found = t
			return false
		}
		return true
	})
	if found == nil {
		return title.Find("table").First()
	}
	return found
}

func parseRows(table *goquery.Selection) ([]xc.Result, int) {
	var cols []string
	table.Find("thead th").Each(func(_ int, th *goquery.Selection) {
		cols = append(cols, strings.ToLower(strings.TrimSpace(th.Text())))
	})

	results := make([]xc.Result, 0)
	excluded := 0
	table.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
		cells := make(map[string]*goquery.Selection, len(cols))
		tr.Find("td").Each(func(i int, td *goquery.Selection) {
			if i < len(cols) {
				cells[cols[i]] = td
			}
		})

		result := parseRow(cells)
		if result.TimeSeconds == nil || (result.Place != nil && *result.Place == 0) {
			excluded++
			return
		}
		results = append(results, result)
	})
	return results, excluded
}

func parseRow(cells map[string]*goquery.Selection) xc.Result {
	result := xc.Result{ClassYear: xc.ClassYearUnknown}

	if td, ok := cells["pl"]; ok {
		if place, ok := normalize.ParsePlace(td.Text()); ok {
			result.Place = &place
		}
	}
	if td, ok := cells["score"]; ok {
		if score, ok := normalize.ParsePlace(td.Text()); ok {
			result.Score = &score
		}
	}
	if td, ok := cells["year"]; ok {
		result.ClassYear = normalize.ParseClassYear(td.Text())
	}
	if td, ok := cells["time"]; ok {
		if secs, ok := normalize.ParseTime(td.Text()); ok {
			result.TimeSeconds = &secs
		}
	}
	if td, ok := cells["team"]; ok {
		if id, ok := normalize.TeamIDFromHref(td.Find("a").AttrOr("href", "")); ok {
			team := normalize.NewTeam(id, normalize.CollapseSpace(td.Text()))
			result.Team = &team
		}
	}
	if td, ok := cells["name"]; ok {
		if id, ok := normalize.AthleteIDFromHref(td.Find("a").AttrOr("href", "")); ok {
			result.Athlete = &xc.Athlete{SourceID: id, Name: normalize.CollapseSpace(td.Text())}
		}
	}
	return result
}
