package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"disaster_backend/internal/logger"
	"disaster_backend/internal/models"
)

const (
	DefaultTimeout  = 15 * time.Second
	gdacsDateLayout = "2006-01-02T15:04:05"
)

// Уровень опасности по alertlevel GDACS
var alertDanger = map[string]int{
	"green":  3,
	"orange": 6,
	"red":    9,
}

// Fetcher - источник внешних отчетов для ингеста
type Fetcher interface {
	Fetch(ctx context.Context) ([]*models.Report, error)
}

// GDACSResponse - GeoJSON FeatureCollection ленты GDACS
type GDACSResponse struct {
	Type     string         `json:"type"`
	Features []GDACSFeature `json:"features"`
}

type GDACSFeature struct {
	Type       string          `json:"type"`
	Properties GDACSProperties `json:"properties"`
	Geometry   GDACSGeometry   `json:"geometry"`
}

type GDACSProperties struct {
	EventType   string      `json:"eventtype"`
	EventID     json.Number `json:"eventid"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	AlertLevel  string      `json:"alertlevel"`
	Country     string      `json:"country"`
	FromDate    string      `json:"fromdate"`
}

// GDACSGeometry: coordinates = [longitude, latitude, (depth)]
type GDACSGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type GDACSClient struct {
	httpClient *http.Client
	url        string
}

func NewGDACSClient(url string, timeout time.Duration) *GDACSClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GDACSClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
	}
}

// Fetch загружает ленту и переводит события в отчеты.
// События без координат или id пропускаются, остальное проверяет сервис.
func (c *GDACSClient) Fetch(ctx context.Context) ([]*models.Report, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating GDACS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making GDACS request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected GDACS status code: %d", resp.StatusCode)
	}

	var feed GDACSResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("error decoding GDACS response: %w", err)
	}

	reports := make([]*models.Report, 0, len(feed.Features))
	skipped := 0
	for i := range feed.Features {
		report, ok := feed.Features[i].ToReport()
		if !ok {
			skipped++
			continue
		}
		reports = append(reports, report)
	}

	logger.CtxInfo(ctx, "GDACS feed fetched", "features", len(feed.Features), "reports", len(reports), "skipped", skipped)
	return reports, nil
}

// ToReport переводит событие GDACS в отчет с source=gdacs
func (f *GDACSFeature) ToReport() (*models.Report, bool) {
	p := f.Properties
	eventID := p.EventID.String()
	if p.EventType == "" || eventID == "" || len(f.Geometry.Coordinates) < 2 {
		return nil, false
	}

	externalID := p.EventType + "-" + eventID
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = externalID
	}

	tags := []string{strings.ToLower(p.EventType)}
	if country := strings.TrimSpace(p.Country); country != "" {
		tags = append(tags, strings.ToLower(country))
	}

	report := &models.Report{
		Category:    models.CategoryFromGDACS(p.EventType),
		Name:        name,
		Description: p.Description,
		Longitude:   f.Geometry.Coordinates[0],
		Latitude:    f.Geometry.Coordinates[1],
		DangerLevel: DangerLevel(p.AlertLevel),
		Visible:     true,
		Source:      models.ReportSourceGDACS,
		ExternalID:  &externalID,
		Tags:        tags,
	}
	if from, err := time.Parse(gdacsDateLayout, p.FromDate); err == nil {
		report.CreatedAt = from.UTC()
	}
	return report, true
}

// DangerLevel: Green 3, Orange 6, Red 9, неизвестный уровень считается Green
func DangerLevel(alertLevel string) int {
	if level, ok := alertDanger[strings.ToLower(strings.TrimSpace(alertLevel))]; ok {
		return level
	}
	return alertDanger["green"]
}
