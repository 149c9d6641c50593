package termdata

import (
	"context"
	"fmt"
	"time"

	"termcal/internal/config"
	applog "termcal/internal/log"
	"termcal/internal/model"
)

// Client resolves term bounds and institutional events from the
// configured calendar sources. It satisfies termbounds.Source.
type Client struct {
	fetcher *Fetcher
	sources []config.CalendarSource
	loc     *time.Location
}

func NewClient(fetcher *Fetcher, sources []config.CalendarSource, loc *time.Location) *Client {
	return &Client{fetcher: fetcher, sources: sources, loc: loc}
}

// TermBounds fetches and parses the calendar source configured for the
// term and returns its class date interval.
func (c *Client) TermBounds(ctx context.Context, termID string) (model.TermInterval, error) {
	for _, src := range c.sources {
		if src.TermID != termID || src.URL == "" {
			continue
		}
		body, fromCache, err := c.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			return model.TermInterval{}, err
		}
		cf, err := ParseCalendarFile(body)
		if err != nil {
			return model.TermInterval{}, err
		}
		iv, err := cf.TermInterval(src.Term, termID, c.loc)
		if err != nil {
			return model.TermInterval{}, err
		}
		applog.Debug("term bounds resolved", "term_id", termID, "from_cache", fromCache)
		return iv, nil
	}
	return model.TermInterval{}, fmt.Errorf("termdata: no calendar source for term %q", termID)
}

// CampusEvents aggregates institutional events across every configured
// source, JSON and ICS alike. Individual source failures are logged and
// skipped; the result may legitimately be empty.
func (c *Client) CampusEvents(ctx context.Context) []model.CampusEvent {
	var out []model.CampusEvent
	for _, src := range c.sources {
		if src.URL != "" {
			body, _, err := c.fetcher.Fetch(ctx, src.URL)
			if err != nil {
				applog.Error("campus events fetch failed", err, "term_id", src.TermID)
			} else if cf, err := ParseCalendarFile(body); err != nil {
				applog.Error("campus events parse failed", err, "term_id", src.TermID)
			} else {
				out = append(out, cf.CampusEvents(c.loc)...)
			}
		}
		if src.ICSURL != "" {
			body, _, err := c.fetcher.Fetch(ctx, src.ICSURL)
			if err != nil {
				applog.Error("campus ICS fetch failed", err, "term_id", src.TermID)
				continue
			}
			evs, err := ParseCampusICS(body, c.loc)
			if err != nil {
				applog.Error("campus ICS parse failed", err, "term_id", src.TermID)
				continue
			}
			out = append(out, evs...)
		}
	}
	return out
}
