package discovery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bluejay-tic/certdiscovery/models"
)

// ExportDocument is the stable on-disk shape of a discovery result.
type ExportDocument struct {
	CertificationName  string                           `json:"certification_name"`
	IssuingBody        string                           `json:"issuing_body"`
	Region             string                           `json:"region"`
	DiscoveryTimestamp time.Time                        `json:"discovery_timestamp"`
	WebsiteStructure   ExportStructure                  `json:"website_structure"`
	DiscoveredContent  map[models.Category][]ExportPage `json:"discovered_content"`
	QualityMetrics     ExportQuality                    `json:"quality_metrics"`
}

// ExportStructure summarizes the discovered site layout.
type ExportStructure struct {
	OfficialURL    string                       `json:"official_url"`
	Domain         string                       `json:"domain"`
	TotalPages     int                          `json:"total_pages"`
	PageCategories map[models.Category][]string `json:"page_categories"`
}

// ExportPage is the per-page export record.
type ExportPage struct {
	URL            string          `json:"url"`
	Title          string          `json:"title"`
	Category       models.Category `json:"category"`
	Confidence     float64         `json:"confidence"`
	ContentExcerpt string          `json:"content_excerpt"`
}

// ExportQuality is the exported quality block.
type ExportQuality struct {
	OverallScore    float64            `json:"overall_score"`
	ScoreBreakdown  map[string]float64 `json:"score_breakdown"`
	Insights        models.Insights    `json:"insights"`
	Recommendations []string           `json:"recommendations"`
}

// NewExportDocument flattens a result into its export shape.
func NewExportDocument(result *models.DiscoveryResult) *ExportDocument {
	doc := &ExportDocument{
		CertificationName:  result.Query.Name,
		IssuingBody:        result.Query.IssuingBody,
		Region:             result.Query.Region,
		DiscoveryTimestamp: result.Timestamp,
		DiscoveredContent:  make(map[models.Category][]ExportPage, len(result.Content)),
	}

	if result.Structure != nil {
		doc.WebsiteStructure = ExportStructure{
			OfficialURL:    result.Structure.OfficialURL,
			Domain:         result.Structure.Domain,
			TotalPages:     result.Structure.TotalPages,
			PageCategories: result.Structure.PagesByCategory,
		}
	}

	for category, pages := range result.Content {
		records := make([]ExportPage, 0, len(pages))
		for _, page := range pages {
			records = append(records, ExportPage{
				URL:            page.URL,
				Title:          page.Title,
				Category:       page.Category,
				Confidence:     page.Confidence,
				ContentExcerpt: page.Excerpt(),
			})
		}
		doc.DiscoveredContent[category] = records
	}

	if result.Quality != nil {
		doc.QualityMetrics = ExportQuality{
			OverallScore: result.Quality.Overall,
			ScoreBreakdown: map[string]float64{
				"relevance":     result.Quality.Relevance,
				"completeness":  result.Quality.Completeness,
				"freshness":     result.Quality.Freshness,
				"accessibility": result.Quality.Accessibility,
			},
			Insights:        result.Quality.Insights,
			Recommendations: result.Quality.Recommendations,
		}
	}
	return doc
}

// JSONWriter persists export documents as indented JSON files.
type JSONWriter struct {
	path string
}

// NewJSONWriter prepares a writer for the given output path, creating the
// parent directory if needed.
func NewJSONWriter(path string) (*JSONWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	return &JSONWriter{path: path}, nil
}

// Write serializes the result and replaces the output file atomically.
func (w *JSONWriter) Write(result *models.DiscoveryResult) error {
	doc := NewExportDocument(result)
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export document: %w", err)
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("finalize export file: %w", err)
	}
	return nil
}

// Path returns the destination the writer targets.
func (w *JSONWriter) Path() string {
	return w.path
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
