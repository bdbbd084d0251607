// Package caller implements the external genotype-caller boundary. The
// HTTP backend is wrapped with a circuit breaker, client-side rate
// limiting, and a two-level response cache; every failure degrades to the
// Unknown-per-gene contract so the pipeline never blocks on genotyping.
package caller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/pgx-risk-server/internal/domain"
)

// HTTPCaller calls a remote genotyping service per gene
type HTTPCaller struct {
	config  domain.CallerConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	local   *lru.Cache
	cache   *Cache
	logger  *logrus.Logger
}

// NewHTTPCaller creates a new caller. The redis cache is optional; pass nil
// to cache in-process only. localSize bounds the in-process cache; values
// below 1 fall back to 256 entries.
func NewHTTPCaller(config domain.CallerConfig, localSize int, redisCache *Cache, logger *logrus.Logger) (*HTTPCaller, error) {
	if localSize < 1 {
		localSize = 256
	}
	local, err := lru.New(localSize)
	if err != nil {
		return nil, fmt.Errorf("creating local cache: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "genotype-caller",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	limit := rate.Limit(config.RateLimit)
	if config.RateLimit <= 0 {
		limit = rate.Inf
	}

	return &HTTPCaller{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		breaker: breaker,
		limiter: rate.NewLimiter(limit, 1),
		local:   local,
		cache:   redisCache,
		logger:  logger,
	}, nil
}

// CallGenes genotypes every requested gene for the sample. Per-gene
// failures are reported through the Unknown contract with the error kept
// as diagnostics; this method never returns an error.
func (c *HTTPCaller) CallGenes(ctx context.Context, sampleRef string, genes []string) map[string]domain.GeneCallResult {
	results := make(map[string]domain.GeneCallResult, len(genes))
	for _, gene := range genes {
		results[gene] = c.callGene(ctx, sampleRef, gene)
	}
	return results
}

func (c *HTTPCaller) callGene(ctx context.Context, sampleRef, gene string) domain.GeneCallResult {
	cacheKey := fmt.Sprintf("%s:%s", sampleRef, gene)

	if cached, ok := c.local.Get(cacheKey); ok {
		return cached.(domain.GeneCallResult)
	}
	if c.cache != nil {
		if result, ok, err := c.cache.Get(ctx, sampleRef, gene); err == nil && ok {
			c.local.Add(cacheKey, result)
			return result
		}
	}

	result, err := c.fetchWithRetry(ctx, sampleRef, gene)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"sample": sampleRef,
			"gene":   gene,
		}).Warn("Genotype caller unavailable, degrading to Unknown")
		return unknownResult(fmt.Sprintf("%s: %s", domain.ErrCallerError, err))
	}

	c.local.Add(cacheKey, result)
	if c.cache != nil {
		if err := c.cache.Set(ctx, sampleRef, gene, result); err != nil {
			c.logger.WithError(err).Debug("Could not cache genotype call")
		}
	}
	return result
}

// callerResponse is the remote service's per-gene payload
type callerResponse struct {
	Diplotype  string                 `json:"diplotype"`
	Phenotype  string                 `json:"phenotype"`
	CopyNumber *int                   `json:"copy_number"`
	Method     string                 `json:"calling_method"`
	Raw        map[string]interface{} `json:"raw_output"`
}

// fetchWithRetry re-attempts transient backend failures up to the
// configured retry count with linear backoff. An open breaker stops the
// retries immediately.
func (c *HTTPCaller) fetchWithRetry(ctx context.Context, sampleRef, gene string) (domain.GeneCallResult, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.GeneCallResult{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
			}
		}

		result, err := c.fetch(ctx, sampleRef, gene)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			break
		}
	}

	return domain.GeneCallResult{}, lastErr
}

func (c *HTTPCaller) fetch(ctx context.Context, sampleRef, gene string) (domain.GeneCallResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.GeneCallResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		url := fmt.Sprintf("%s/v1/samples/%s/genes/%s", c.config.BaseURL, sampleRef, gene)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("caller returned status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return domain.GeneCallResult{}, err
	}

	var payload callerResponse
	if err := json.Unmarshal(body.([]byte), &payload); err != nil {
		return domain.GeneCallResult{}, fmt.Errorf("decoding caller response: %w", err)
	}

	return normalizeResult(gene, payload), nil
}

// normalizeResult converts the remote payload to the standard contract.
// CYP2D6 copy numbers other than 2 flag a structural variant.
func normalizeResult(gene string, payload callerResponse) domain.GeneCallResult {
	diplotype := payload.Diplotype
	if diplotype == "" {
		diplotype = "Unknown"
	}
	phenotype := payload.Phenotype
	if phenotype == "" {
		phenotype = "Unknown"
	}
	method := payload.Method
	if method == "" {
		method = "Unknown"
	}

	hasSV := false
	if gene == "CYP2D6" && payload.CopyNumber != nil && *payload.CopyNumber != 2 {
		hasSV = true
	}

	return domain.GeneCallResult{
		Diplotype:            diplotype,
		Phenotype:            phenotype,
		CopyNumber:           payload.CopyNumber,
		HasStructuralVariant: hasSV,
		CallingMethod:        method,
		RawOutput:            payload.Raw,
	}
}

func unknownResult(reason string) domain.GeneCallResult {
	return domain.GeneCallResult{
		Diplotype:     "Unknown",
		Phenotype:     "Unknown",
		CallingMethod: "Unknown",
		Error:         reason,
	}
}
