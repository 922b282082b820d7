package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/anki-vision/planartrack/edgetracker"
	"github.com/anki-vision/planartrack/fiducial"
)

func TestDefaultProducesAnEdgeVariantConfig(t *testing.T) {
	cfg := Default()
	if cfg.Variant != EdgeVariant {
		t.Fatalf("expected default variant %q, got %q", EdgeVariant, cfg.Variant)
	}
	if cfg.Fiducial.NumPyramidLevels <= 0 {
		t.Fatalf("expected a positive default pyramid level count")
	}
}

func TestLoadOverridesDefaultsFromIni(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.ini")
	contents := `
[Variant]
tracker = sampled

[EdgeTracker]
strategy = ransac
ransacMaxIterations = 1000

[Fiducial]
cornerMode = laplacianPeaks
numPyramidLevels = 5

[Session]
distanceThreshold = 99.5
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Variant != SampledVariant {
		t.Fatalf("expected variant override to %q, got %q", SampledVariant, cfg.Variant)
	}
	if cfg.EdgeUpdate.Strategy != edgetracker.RANSAC {
		t.Fatalf("expected RANSAC strategy override, got %v", cfg.EdgeUpdate.Strategy)
	}
	if cfg.EdgeUpdate.RANSACMaxIterations != 1000 {
		t.Fatalf("expected ransacMaxIterations override, got %d", cfg.EdgeUpdate.RANSACMaxIterations)
	}
	if cfg.Fiducial.CornerMode != fiducial.LaplacianPeaks {
		t.Fatalf("expected cornerMode override to laplacianPeaks")
	}
	if cfg.Fiducial.NumPyramidLevels != 5 {
		t.Fatalf("expected numPyramidLevels override to 5, got %d", cfg.Fiducial.NumPyramidLevels)
	}
	if cfg.Session.DistanceThreshold != 99.5 {
		t.Fatalf("expected distanceThreshold override to 99.5, got %v", cfg.Session.DistanceThreshold)
	}

	// Untouched sections should retain their defaults.
	def := Default()
	if cfg.LKPyramid != def.LKPyramid {
		t.Fatalf("expected untouched LKPyramid section to keep defaults")
	}
}
