package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-sql/civil"

	"orderrpa/internal/orders"
)

// Report is everything one run produced, ready for rendering.
type Report struct {
	RunID         string                  `json:"runId"`
	GeneratedAt   time.Time               `json:"generatedAt"`
	ReferenceDate civil.Date              `json:"referenceDate"`
	Params        orders.Params           `json:"params"`
	Summary       orders.ExecutiveSummary `json:"summary"`
	Customers     []orders.CustomerTotal  `json:"customers"`
	Freight       []orders.FreightEntry   `json:"freight"`
	InvalidRows   orders.ValidationReport `json:"invalidRows"`
}

// Renderer writes a report somewhere and returns its location.
type Renderer interface {
	Render(r Report) (string, error)
}

// JSONRenderer writes <dir>/<runid>/report.json.
type JSONRenderer struct {
	Dir string
}

func (j JSONRenderer) Render(r Report) (string, error) {
	if r.RunID == "" {
		return "", fmt.Errorf("render json: empty run id")
	}
	if err := os.MkdirAll(filepath.Join(j.Dir, r.RunID), 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	file := filepath.Join(j.Dir, r.RunID, "report.json")
	out, err := os.Create(file)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&r); err != nil {
		out.Close()
		return "", fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}
	return file, nil
}

// ReadJSON loads a report written by JSONRenderer.
func ReadJSON(path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("unmarshal report: %w", err)
	}
	return r, nil
}
