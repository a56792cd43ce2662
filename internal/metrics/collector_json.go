package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"citypee/internal/domain"
	"citypee/pkg/logger"
)

// JSONCollector reads a validation summary served as JSON, either bare or
// wrapped in a {"data": ...} envelope.
type JSONCollector struct {
	src *httpSource
}

// NewJSONCollector creates a collector for the summary at url.
func NewJSONCollector(url string, timeout time.Duration, log *logger.Logger) *JSONCollector {
	return &JSONCollector{src: newHTTPSource(SourceJSON, url, timeout, log)}
}

// Source implements Collector.
func (c *JSONCollector) Source() string { return SourceJSON }

// CollectMetrics implements Collector.
func (c *JSONCollector) CollectMetrics(ctx context.Context, requested []string) CollectionResult {
	body, err := c.src.fetch(ctx, "application/json")
	if err != nil {
		return failed(SourceJSON, err)
	}

	summary, err := decodeSummary(body)
	if err != nil {
		return failed(SourceJSON, err)
	}
	return CollectionResult{
		Success: true,
		Data:    selectMetrics(summaryValues(*summary), requested),
		Source:  SourceJSON,
	}
}

func decodeSummary(body []byte) (*domain.ValidationSummary, error) {
	var envelope struct {
		Data *domain.ValidationSummary `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("invalid summary JSON: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}

	var summary domain.ValidationSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("invalid summary JSON: %w", err)
	}
	return &summary, nil
}
