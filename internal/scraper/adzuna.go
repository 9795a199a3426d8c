package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"jobmate/aggregator-service/internal/model"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	adzunaMaxPages = 3 // max 150 results per (title × location) pair
)

// Adzuna fetches job offers from the Adzuna public API for every
// (target title × location) pair of the profile. Missing credentials make
// Search a logged no-op.
type Adzuna struct {
	base
	country  string
	maxPages int
}

// NewAdzuna builds the adapter from its source block.
func NewAdzuna(b base) *Adzuna {
	country := b.cfg.Country
	if country == "" {
		country = "us"
	}
	pages := b.cfg.MaxPages
	if pages <= 0 || pages > adzunaMaxPages {
		pages = adzunaMaxPages
	}
	return &Adzuna{base: b, country: country, maxPages: pages}
}

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

// adzunaResult mirrors a single Adzuna job listing.
type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// Search implements Adapter.
func (a *Adzuna) Search(ctx context.Context, p model.SearchProfile) Result {
	if !a.Enabled() {
		return disabledResult(a.name)
	}
	if a.cfg.AppID == "" || a.cfg.AppKey == "" {
		a.log.Warn().Msg("app_id / app_key not set — skipping")
		return okResult(a.name, nil)
	}

	titles := append(append([]string{}, p.TargetTitles...), p.AdjacentTitles...)
	where := adzunaWhere(p)

	var (
		links     []model.JobLink
		errs      []error
		succeeded int
	)
	for _, title := range titles {
		batch, err := a.fetchTitle(ctx, title, where)
		links = append(links, batch...)
		if err != nil {
			a.log.Warn().Err(err).Str("title", title).Str("where", where).Msg("query failed — continuing")
			errs = append(errs, fmt.Errorf("%q: %w", title, err))
			continue
		}
		succeeded++
	}

	err := errors.Join(errs...)
	if err != nil && succeeded == 0 && len(links) == 0 {
		return failedResult(a.name, err)
	}
	res := okResult(a.name, links)
	res.Err = err
	return res
}

// adzunaWhere picks the place name for the query. A location mode is only
// sent when it names a place rather than remote/onsite/hybrid.
func adzunaWhere(p model.SearchProfile) string {
	if p.City != "" {
		return p.City
	}
	switch strings.ToLower(strings.TrimSpace(p.LocationMode)) {
	case "", "remote", "onsite", "on-site", "hybrid":
		return ""
	default:
		return strings.TrimSpace(p.LocationMode)
	}
}

// fetchTitle walks result pages until a short page or maxPages.
func (a *Adzuna) fetchTitle(ctx context.Context, title, where string) ([]model.JobLink, error) {
	var links []model.JobLink
	for page := 1; page <= a.maxPages; page++ {
		batch, err := a.fetchPage(ctx, title, where, page)
		if err != nil {
			return links, fmt.Errorf("page %d: %w", page, err)
		}
		links = append(links, batch...)
		if len(batch) < adzunaPageSize {
			break // last page
		}
	}
	return links, nil
}

func (a *Adzuna) fetchPage(ctx context.Context, title, where string, page int) ([]model.JobLink, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.endpoint(adzunaBaseURL), a.country, page)

	params := url.Values{}
	params.Set("app_id", a.cfg.AppID)
	params.Set("app_key", a.cfg.AppKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("what", title)
	if where != "" {
		params.Set("where", where)
	}
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")

	body, err := a.fetch.Get(ctx, endpoint+"?"+params.Encode(), "application/json")
	if err != nil {
		return nil, err
	}
	return ParseAdzuna(body)
}

// ParseAdzuna converts one Adzuna result page into links. Offers without a
// redirect URL are skipped.
func ParseAdzuna(data []byte) ([]model.JobLink, error) {
	var apiResp adzunaResponse
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("adzuna: json unmarshal: %w", err)
	}

	links := make([]model.JobLink, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		if r.RedirectURL == "" {
			continue
		}
		meta := map[string]any{
			"id":            r.ID,
			"title":         r.Title,
			"company":       r.Company.DisplayName,
			"location":      r.Location.DisplayName,
			"description":   r.Description,
			"created":       r.Created,
			"contract_type": r.ContractType,
			"contract_time": r.ContractTime,
		}
		if r.SalaryMin > 0 || r.SalaryMax > 0 {
			meta["salary"] = fmt.Sprintf("%.0f-%.0f", r.SalaryMin, r.SalaryMax)
		}
		links = append(links, model.JobLink{
			URL:          r.RedirectURL,
			SourceName:   "Adzuna API",
			SourceDomain: "adzuna.com",
			Meta:         meta,
		})
	}
	return links, nil
}
