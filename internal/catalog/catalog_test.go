package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte{0x89}, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestCatalogScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "flames", "red_flame.png"))
	writeFile(t, filepath.Join(root, "flames", "blue_flame.jpg"))
	writeFile(t, filepath.Join(root, "animals", "big_cats", "tiger_stripe.gif"))
	writeFile(t, filepath.Join(root, "top_level.jpeg"))
	writeFile(t, filepath.Join(root, "flames", "readme.txt"))
	writeFile(t, filepath.Join(root, "flames", "source.psd"))

	catalog, err := NewProvider(root).Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}

	if len(catalog.Items) != 4 {
		t.Fatalf("got %d items, want 4: %+v", len(catalog.Items), catalog.Items)
	}

	byName := make(map[string]string)
	for _, item := range catalog.Items {
		byName[item.Name] = item.Category
	}
	if got := byName["red flame"]; got != "flames" {
		t.Errorf("red flame category = %q, want flames", got)
	}
	if got := byName["tiger stripe"]; got != "animals/big_cats" {
		t.Errorf("tiger stripe category = %q, want animals/big_cats", got)
	}
	if got := byName["top level"]; got != "" {
		t.Errorf("top level category = %q, want empty", got)
	}
	if _, ok := byName["readme"]; ok {
		t.Error("non-image readme.txt leaked into catalog")
	}
	if _, ok := byName["source"]; ok {
		t.Error("non-image source.psd leaked into catalog")
	}
}

func TestCatalogImagePaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "flames", "red_flame.png"))

	catalog, err := NewProvider(root).Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(catalog.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(catalog.Items))
	}
	if got := catalog.Items[0].ImagePath; got != "/decals/flames/red_flame.png" {
		t.Errorf("image path = %q, want /decals/flames/red_flame.png", got)
	}
}

func TestCatalogCategoryTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "animals", "big_cats", "tiger.png"))
	writeFile(t, filepath.Join(root, "animals", "birds", "eagle.png"))
	writeFile(t, filepath.Join(root, "flames", "red.png"))

	catalog, err := NewProvider(root).Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}

	if len(catalog.Categories) != 2 {
		t.Fatalf("got %d top-level categories, want 2: %+v", len(catalog.Categories), catalog.Categories)
	}
	animals := catalog.Categories[0]
	if animals.Name != "animals" || animals.Path != "animals" {
		t.Fatalf("unexpected first category %+v", animals)
	}
	if len(animals.Subcategories) != 2 {
		t.Fatalf("got %d subcategories, want 2", len(animals.Subcategories))
	}
	if animals.Subcategories[0].Name != "big cats" || animals.Subcategories[0].Path != "animals/big_cats" {
		t.Errorf("unexpected subcategory %+v", animals.Subcategories[0])
	}
	if catalog.Categories[1].Name != "flames" {
		t.Errorf("unexpected second category %+v", catalog.Categories[1])
	}
}

func TestCatalogEmptyRoot(t *testing.T) {
	catalog, err := NewProvider(t.TempDir()).Catalog()
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(catalog.Items) != 0 || len(catalog.Categories) != 0 {
		t.Fatalf("expected empty catalog, got %+v", catalog)
	}
}
