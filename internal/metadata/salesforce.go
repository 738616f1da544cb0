package metadata

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rca-cli/internal/model"
	"github.com/sells-group/rca-cli/internal/resilience"
	"github.com/sells-group/rca-cli/pkg/salesforce"
)

// DefaultMinScore is the lowest combined match score accepted.
const DefaultMinScore = 0.6

// Name and address weights in the combined match score.
const (
	nameWeight    = 0.4
	addressWeight = 0.6
)

var (
	punctRe  = regexp.MustCompile(`[.,]`)
	avenueRe = regexp.MustCompile(`\bavenue\b`)
	streetRe = regexp.MustCompile(`\bstreet\b`)
)

// Match is a scored Salesforce candidate.
type Match struct {
	Site         salesforce.Site
	NameScore    float64
	AddressScore float64
	Score        float64
}

// SalesforceProvider finds a facility's site record by name and picks the
// candidate whose name and street best match.
type SalesforceProvider struct {
	client   salesforce.Client
	minScore float64
	limit    int
	retry    resilience.RetryConfig
}

// ProviderOption configures a SalesforceProvider.
type ProviderOption func(*SalesforceProvider)

// WithRetry sets the backoff policy for site queries. Unset ShouldRetry and
// OnRetry keep the provider's defaults.
func WithRetry(cfg resilience.RetryConfig) ProviderOption {
	return func(p *SalesforceProvider) {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = p.retry.ShouldRetry
		}
		if cfg.OnRetry == nil {
			cfg.OnRetry = p.retry.OnRetry
		}
		p.retry = cfg
	}
}

// NewSalesforceProvider creates a provider. A minScore of 0 uses
// DefaultMinScore.
func NewSalesforceProvider(client salesforce.Client, minScore float64, opts ...ProviderOption) *SalesforceProvider {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = retryableQuery
	retry.OnRetry = resilience.RetryLogger("salesforce", "site query")

	p := &SalesforceProvider{client: client, minScore: minScore, limit: 50, retry: retry}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Salesforce error codes that clear up on their own.
var transientCodes = []string{
	"server_unavailable",
	"request_limit_exceeded",
	"unable_to_lock_row",
	"service unavailable",
}

func retryableQuery(err error) bool {
	if resilience.IsTransient(err) {
		return true
	}
	if resilience.IsPermanent(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, code := range transientCodes {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// Lookup implements Provider.
func (p *SalesforceProvider) Lookup(ctx context.Context, info model.EntityInfo) (*model.EntityMetadata, error) {
	matches, err := p.Candidates(ctx, info)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 || matches[0].Score < p.minScore {
		zap.L().Debug("metadata: no salesforce match",
			zap.Int("entity_id", info.ID),
			zap.Int("candidates", len(matches)),
		)
		return nil, nil
	}

	best := matches[0].Site
	meta := &model.EntityMetadata{SquareFootage: best.NetRSF}
	if best.YearBuilt != nil {
		y := int(*best.YearBuilt)
		meta.YearBuilt = &y
	}
	zap.L().Debug("metadata: salesforce match",
		zap.Int("entity_id", info.ID),
		zap.String("site", best.Name),
		zap.Float64("score", matches[0].Score),
	)
	return meta, nil
}

// Candidates queries sites by the leading word of the entity name and returns
// them best first.
func (p *SalesforceProvider) Candidates(ctx context.Context, info model.EntityInfo) ([]Match, error) {
	term := searchTerm(info.Name)
	if term == "" {
		return nil, nil
	}
	sites, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) ([]salesforce.Site, error) {
		return salesforce.FindSitesByName(ctx, p.client, term, p.limit)
	})
	if err != nil {
		return nil, eris.Wrap(err, "metadata: salesforce lookup")
	}

	matches := make([]Match, 0, len(sites))
	for _, s := range sites {
		m := Score(info, s)
		matches = append(matches, m)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches, nil
}

// Score rates how well a site matches an entity: 40% name, 60% street.
func Score(info model.EntityInfo, s salesforce.Site) Match {
	name := max(similarity(info.Name, s.Name), similarity(info.Name, s.Brand()))
	addr := similarity(normalizeAddress(info.Address), normalizeAddress(s.Street()))
	return Match{
		Site:         s,
		NameScore:    name,
		AddressScore: addr,
		Score:        name*nameWeight + addr*addressWeight,
	}
}

func similarity(a, b string) float64 {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil)
}

func normalizeAddress(s string) string {
	s = punctRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "")
	s = avenueRe.ReplaceAllString(s, "ave")
	return streetRe.ReplaceAllString(s, "st")
}

// searchTerm is the first word of name, long enough to narrow the query.
func searchTerm(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
