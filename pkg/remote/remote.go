package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/ctgov-cache/pkg/log"
	"github.com/cuemby/ctgov-cache/pkg/nct"
	"github.com/cuemby/ctgov-cache/pkg/types"
	"github.com/rs/zerolog"
)

// DefaultEndpoint is the ClinicalTrials.gov v2 API base used when a
// Client is constructed without an explicit override.
const DefaultEndpoint = "https://clinicaltrials.gov/api/v2"

// DefaultTimeout is the per-request transport timeout recommended by
// spec.md §4.D ("implementation-defined, recommended 30s").
const DefaultTimeout = 30 * time.Second

// ErrTransport wraps a failed remote call or a non-2xx response.
var ErrTransport = errors.New("remote: transport error")

// ErrParse marks a response body that parsed as JSON but not as the
// expected {studies: [...]} bundle shape.
var ErrParse = errors.New("remote: parse error")

// studiesResponse mirrors the v2 API's bundle envelope.
type studiesResponse struct {
	Studies       []types.StudyRecord `json:"studies"`
	NextPageToken string               `json:"nextPageToken"`
}

// Client fetches study bundles from ClinicalTrials.gov. Its shape
// follows the teacher's HTTPChecker: an injectable *http.Client field
// and a context-aware call, generalized here to a paginated fetch.
type Client struct {
	// Endpoint is the API base, e.g. "https://clinicaltrials.gov/api/v2".
	Endpoint string

	// HTTPClient performs the requests. Its own Timeout is honored in
	// addition to any deadline carried by the context passed to
	// FetchStudies; Go's default http.Client already follows up to 10
	// redirect hops, satisfying spec.md §6's redirect-following clause.
	HTTPClient *http.Client

	// PageSize bounds how many studies the upstream returns per page.
	// Zero leaves it to the upstream default.
	PageSize int

	logger zerolog.Logger
}

// NewClient creates a Client against endpoint (DefaultEndpoint if
// empty) with a default-timeout HTTP client.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint:   endpoint,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		logger:     log.WithComponent("remote"),
	}
}

// FetchStudies retrieves the study records for ids, following
// nextPageToken until the upstream stops returning one. The returned
// slice may omit ids the upstream does not recognize (spec.md §4.D
// step 6 treats those as "not in bundle", handled by the caller).
func (c *Client) FetchStudies(ctx context.Context, ids []nct.ID) ([]types.StudyRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	filter := make([]string, len(ids))
	for i, id := range ids {
		filter[i] = id.String()
	}

	var all []types.StudyRecord
	pageToken := ""
	for {
		page, next, err := c.fetchPage(ctx, filter, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		pageToken = next
	}
	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, filterIDs []string, pageToken string) ([]types.StudyRecord, string, error) {
	u, err := url.Parse(strings.TrimRight(c.Endpoint, "/") + "/studies")
	if err != nil {
		return nil, "", fmt.Errorf("%w: building request URL: %v", ErrTransport, err)
	}
	q := u.Query()
	q.Set("filter.ids", strings.Join(filterIDs, ","))
	if c.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(c.PageSize))
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Int("batch_size", len(filterIDs)).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("fetched study batch")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: upstream returned %s", ErrTransport, resp.Status)
	}

	var body studiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	if body.Studies == nil {
		return nil, "", fmt.Errorf("%w: response missing studies array", ErrParse)
	}

	return body.Studies, body.NextPageToken, nil
}
