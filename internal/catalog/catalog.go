package catalog

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"decaldesk/backend/internal/domain"
)

// Provider scans a directory of decal images on demand and derives the
// browsable catalog from the file layout. Nothing is cached: the tree on
// disk is the source of truth and may change between requests.
type Provider struct {
	root string
}

func NewProvider(root string) *Provider {
	return &Provider{root: root}
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// Catalog walks the root and returns the category tree plus the flat
// item list. Item names come from file names with underscores replaced
// by spaces; the category is the slash-joined path of directories from
// the root down to the file.
func (p *Provider) Catalog() (*domain.Catalog, error) {
	items := make([]domain.CatalogItem, 0, 64)
	children := make(map[string][]string)
	seen := make(map[string]bool)

	err := filepath.WalkDir(p.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(p.root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if entry.IsDir() {
			if !seen[rel] {
				seen[rel] = true
				children[parentPath(rel)] = append(children[parentPath(rel)], rel)
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExtensions[ext] {
			return nil
		}

		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		items = append(items, domain.CatalogItem{
			Name:      strings.ReplaceAll(base, "_", " "),
			Category:  parentPath(rel),
			ImagePath: "/decals/" + rel,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Name < items[j].Name
	})

	return &domain.Catalog{
		Categories: buildTree("", children),
		Items:      items,
	}, nil
}

func parentPath(rel string) string {
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." {
		return ""
	}
	return dir
}

func buildTree(parent string, children map[string][]string) []domain.Category {
	paths := children[parent]
	sort.Strings(paths)

	categories := make([]domain.Category, 0, len(paths))
	for _, path := range paths {
		name := path
		if idx := strings.LastIndex(path, "/"); idx >= 0 {
			name = path[idx+1:]
		}
		categories = append(categories, domain.Category{
			Name:          strings.ReplaceAll(name, "_", " "),
			Path:          path,
			Subcategories: buildTree(path, children),
		})
	}
	return categories
}
