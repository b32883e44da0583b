package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rshade/costlens/internal/ingest"
	"github.com/rshade/costlens/internal/logging"
)

// Azure Cost Management defaults.
const (
	DefaultAzureEndpoint   = "https://management.azure.com"
	AzureAPIVersion        = "2023-03-01"
	EnvAzureAccessToken    = "AZURE_ACCESS_TOKEN"
	defaultAzureRPS        = 1.0
	azureHTTPTimeout       = 60 * time.Second
	azureMaxPages          = 100
	azureErrorBodyMaxBytes = 512
)

// ErrNoToken is returned when no bearer token is available.
var ErrNoToken = errors.New("no Azure access token")

// TokenSource supplies a bearer token for the management API.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// EnvToken reads AZURE_ACCESS_TOKEN on every call.
type EnvToken struct{}

// Token implements TokenSource.
func (EnvToken) Token(context.Context) (string, error) {
	tok := strings.TrimSpace(os.Getenv(EnvAzureAccessToken))
	if tok == "" {
		return "", fmt.Errorf("%w: set %s", ErrNoToken, EnvAzureAccessToken)
	}
	return tok, nil
}

// AzureOptions configures NewAzure.
type AzureOptions struct {
	SubscriptionID string
	// Endpoint overrides DefaultAzureEndpoint.
	Endpoint string
	// RequestsPerSec limits API calls; <= 0 selects one per second.
	RequestsPerSec float64
	// Tokens defaults to EnvToken.
	Tokens TokenSource
	// Client defaults to an http.Client with a 60s timeout.
	Client *http.Client
}

// Azure queries daily pre-tax cost grouped by resource group.
type Azure struct {
	subscriptionID string
	endpoint       string
	tokens         TokenSource
	client         *http.Client
	limiter        *rate.Limiter
}

// NewAzure returns an Azure source.
func NewAzure(opts AzureOptions) *Azure {
	a := &Azure{
		subscriptionID: opts.SubscriptionID,
		endpoint:       strings.TrimRight(opts.Endpoint, "/"),
		tokens:         opts.Tokens,
		client:         opts.Client,
	}
	if a.endpoint == "" {
		a.endpoint = DefaultAzureEndpoint
	}
	if a.tokens == nil {
		a.tokens = EnvToken{}
	}
	if a.client == nil {
		a.client = &http.Client{Timeout: azureHTTPTimeout}
	}
	rps := opts.RequestsPerSec
	if rps <= 0 {
		rps = defaultAzureRPS
	}
	a.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	return a
}

// Name implements Source.
func (a *Azure) Name() string { return "azure" }

type azureTimePeriod struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type azureAggregation struct {
	Name     string `json:"name"`
	Function string `json:"function"`
}

type azureGrouping struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type azureDataset struct {
	Granularity string                      `json:"granularity"`
	Aggregation map[string]azureAggregation `json:"aggregation"`
	Grouping    []azureGrouping             `json:"grouping"`
}

type azureQuery struct {
	Type       string           `json:"type"`
	Timeframe  string           `json:"timeframe"`
	TimePeriod *azureTimePeriod `json:"timePeriod,omitempty"`
	Dataset    azureDataset     `json:"dataset"`
}

type azureColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type azureResponse struct {
	Properties struct {
		NextLink string              `json:"nextLink"`
		Columns  []azureColumn       `json:"columns"`
		Rows     [][]json.RawMessage `json:"rows"`
	} `json:"properties"`
}

func buildAzureQuery(q Query) azureQuery {
	body := azureQuery{
		Type:      "Usage",
		Timeframe: "MonthToDate",
		Dataset: azureDataset{
			Granularity: "Daily",
			Aggregation: map[string]azureAggregation{
				"totalCost": {Name: "PreTaxCost", Function: "Sum"},
			},
			Grouping: []azureGrouping{{Type: "Dimension", Name: "ResourceGroupName"}},
		},
	}
	if !q.From.IsZero() || !q.To.IsZero() {
		to := q.To
		if to.IsZero() {
			to = time.Now().UTC()
		}
		from := q.From
		if from.IsZero() {
			from = time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, time.UTC)
		}
		body.Timeframe = "Custom"
		body.TimePeriod = &azureTimePeriod{
			From: from.UTC().Format("2006-01-02") + "T00:00:00Z",
			To:   to.UTC().Format("2006-01-02") + "T23:59:59Z",
		}
	}
	return body
}

func (a *Azure) scope(q Query) (string, error) {
	if s := strings.Trim(q.Scope, "/"); s != "" {
		return s, nil
	}
	if a.subscriptionID == "" {
		return "", errors.New("no subscription ID or scope configured")
	}
	return "subscriptions/" + a.subscriptionID, nil
}

// Fetch implements Source. Pages are followed through nextLink.
func (a *Azure) Fetch(ctx context.Context, q Query) (ingest.RawTable, error) {
	log := logging.FromContext(ctx)

	scope, err := a.scope(q)
	if err != nil {
		return ingest.RawTable{}, fail(a.Name(), err)
	}
	body, err := json.Marshal(buildAzureQuery(q))
	if err != nil {
		return ingest.RawTable{}, fail(a.Name(), err)
	}

	url := fmt.Sprintf("%s/%s/providers/Microsoft.CostManagement/query?api-version=%s",
		a.endpoint, scope, AzureAPIVersion)

	var table ingest.RawTable
	for page := 0; url != ""; page++ {
		if page >= azureMaxPages {
			return ingest.RawTable{}, fail(a.Name(), fmt.Errorf("more than %d result pages", azureMaxPages))
		}
		resp, pageErr := a.post(ctx, url, body)
		if pageErr != nil {
			return ingest.RawTable{}, fail(a.Name(), pageErr)
		}
		if table.Columns == nil {
			for _, c := range resp.Properties.Columns {
				table.Columns = append(table.Columns, c.Name)
			}
		}
		for _, raw := range resp.Properties.Rows {
			row := make([]string, len(raw))
			for i, v := range raw {
				row[i] = azureCell(v)
			}
			table.Rows = append(table.Rows, row)
		}
		url = resp.Properties.NextLink
	}

	log.Debug().
		Str("component", "source").
		Str("source", a.Name()).
		Str("scope", scope).
		Int("rows", len(table.Rows)).
		Msg("fetched Azure cost query")
	return table, nil
}

func (a *Azure) post(ctx context.Context, url string, body []byte) (*azureResponse, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, azureErrorBodyMaxBytes))
		return nil, fmt.Errorf("cost query returned %s: %s", res.Status, strings.TrimSpace(string(snippet)))
	}

	var out azureResponse
	dec := json.NewDecoder(res.Body)
	if err = dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding cost query response: %w", err)
	}
	return &out, nil
}

// azureCell renders a JSON scalar as text. Numbers keep their literal form
// so 20240101 stays a parseable date.
func azureCell(v json.RawMessage) string {
	s := strings.TrimSpace(string(v))
	if s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			return str
		}
	}
	return s
}
