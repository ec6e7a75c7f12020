package mask

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/raster2vec/internal/imaging"
)

// Score is the Jaccard index of one predicted mask against its ground truth.
type Score struct {
	Name    string  `json:"name"`
	Jaccard float64 `json:"jaccard"`
}

// Report summarizes a comparison of predicted and ground-truth masks.
type Report struct {
	Scores  []Score  `json:"scores"`
	Mean    float64  `json:"mean"`
	Missing []string `json:"missing,omitempty"`
}

// CompareFiles loads a predicted and a ground-truth mask image and returns
// their Jaccard index. Pixels at or above level are foreground.
func CompareFiles(predPath, truthPath string, level uint8) (float64, error) {
	pred, err := imaging.Open(predPath)
	if err != nil {
		return 0, err
	}
	truth, err := imaging.Open(truthPath)
	if err != nil {
		return 0, err
	}
	return Jaccard(FromImage(pred, level), FromImage(truth, level))
}

// CompareDirs scores every mask image in predDir against the file of the
// same name in truthDir. Predictions without a ground truth are listed in
// Report.Missing and left out of the mean.
func CompareDirs(predDir, truthDir string, level uint8) (*Report, error) {
	entries, err := os.ReadDir(predDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".webp", ".tif", ".tiff", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	report := &Report{Scores: []Score{}}
	var sum float64
	for _, name := range names {
		truthPath := filepath.Join(truthDir, name)
		if _, err := os.Stat(truthPath); err != nil {
			report.Missing = append(report.Missing, name)
			continue
		}
		j, err := CompareFiles(filepath.Join(predDir, name), truthPath, level)
		if err != nil {
			return nil, fmt.Errorf("failed to compare %s: %w", name, err)
		}
		report.Scores = append(report.Scores, Score{Name: name, Jaccard: j})
		sum += j
	}
	if n := len(report.Scores); n > 0 {
		report.Mean = sum / float64(n)
	}
	return report, nil
}
