package extraction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Material is the per-identifier snapshot persisted to disk. MaterialNumber is
// always present, everything else is independently optional, partial data from
// the backend is the normal case. QARequirements stays nil until the scraping
// stage completes for the material, afterwards it is present even when empty.
type Material struct {
	MaterialNumber     string         `json:"material_number"`
	ComponentId        string         `json:"component_id"`
	Cost               string         `json:"cost"`
	SupplierName       string         `json:"supplier_name"`
	SupplierMaterialNo string         `json:"supplier_material_no"`
	ImageUrls          []string       `json:"image_url"`
	QARequirements     map[string]any `json:"qa_requirements"`
}

// MaterialDir is the per-identifier directory inside a batch output folder.
func MaterialDir(batchDir, materialNumber string) string {
	return filepath.Join(batchDir, fmt.Sprintf("material_%s", materialNumber))
}

// ImagesDir holds the downloaded images of one material.
func ImagesDir(materialDir string) string {
	return filepath.Join(materialDir, "images")
}

// SnapshotPath is the JSON snapshot inside a material directory.
func SnapshotPath(materialDir, materialNumber string) string {
	return filepath.Join(materialDir, fmt.Sprintf("material_%s_data.json", materialNumber))
}

// WriteSnapshot serializes the material into its directory. The directory is
// written once per run and treated as immutable afterwards.
func WriteSnapshot(material Material, materialDir string) error {
	data, err := json.MarshalIndent(material, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(SnapshotPath(materialDir, material.MaterialNumber), data, 0644)
}

// ReadSnapshot loads a previously persisted material snapshot.
func ReadSnapshot(path string) (Material, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Material{}, err
	}
	var material Material
	err = json.Unmarshal(data, &material)
	if err != nil {
		return Material{}, err
	}
	return material, nil
}
