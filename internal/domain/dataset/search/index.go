// Package search keeps a full-text index over dataset filenames and column
// labels.
package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"

	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/codes"
	"github.com/FACorreiaa/maritime-portal/internal/domain/dataset/repository"
)

// Document is the indexed form of a dataset
type Document struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	BaseFilename string `json:"base_filename"`
	Columns      string `json:"columns"`
	Sheet        string `json:"sheet"`
}

// Hit is one search result
type Hit struct {
	DatasetID uuid.UUID
	Score     float64
}

// Index provides full-text search over datasets using Bleve
type Index struct {
	index   bleve.Index
	indexMu sync.RWMutex
	path    string // empty for in-memory
}

// NewIndex creates an in-memory index when path is empty, otherwise creates
// or opens a persistent one
func NewIndex(path string) (*Index, error) {
	var (
		index bleve.Index
		err   error
	)

	if path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		if mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755); mkdirErr != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", mkdirErr)
		}
		index, err = bleve.New(path, buildIndexMapping())
	} else {
		index, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create/open index: %w", err)
	}

	return &Index{index: index, path: path}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = simple.Name

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("filename", textFieldMapping)
	docMapping.AddFieldMappingsAt("base_filename", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("columns", textFieldMapping)
	docMapping.AddFieldMappingsAt("sheet", textFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = simple.Name
	return indexMapping
}

func toDocument(d repository.Dataset) Document {
	// underscores keep filename tokens glued under the simple analyzer
	name := strings.NewReplacer("_", " ", ".", " ").Replace(d.OriginalFilename)
	return Document{
		ID:           d.ID.String(),
		Filename:     name,
		BaseFilename: codes.BaseFilename(d.OriginalFilename),
		Columns:      strings.Join(d.Columns, " | "),
		Sheet:        d.SheetName,
	}
}

// Add indexes one dataset
func (si *Index) Add(d repository.Dataset) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	doc := toDocument(d)
	if err := si.index.Index(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to index dataset %s: %w", d.ID, err)
	}
	return nil
}

// Rebuild replaces the index content with the given datasets
func (si *Index) Rebuild(datasets []repository.Dataset) error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	if err := si.clearLocked(); err != nil {
		return err
	}

	batch := si.index.NewBatch()
	for _, d := range datasets {
		doc := toDocument(d)
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to index dataset %s: %w", d.ID, err)
		}
	}
	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to execute batch index: %w", err)
	}
	return nil
}

// Search runs a fuzzy match query across filenames and columns
func (si *Index) Search(query string, limit int) ([]Hit, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetFuzziness(1)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = limit

	res, err := si.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{DatasetID: id, Score: h.Score})
	}
	return hits, nil
}

// Count returns the number of indexed datasets
func (si *Index) Count() (uint64, error) {
	si.indexMu.RLock()
	defer si.indexMu.RUnlock()
	return si.index.DocCount()
}

func (si *Index) clearLocked() error {
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = 10000

	res, err := si.index.Search(req)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	batch := si.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	if err := si.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	return nil
}

// Close closes the index
func (si *Index) Close() error {
	si.indexMu.Lock()
	defer si.indexMu.Unlock()

	if si.index != nil {
		return si.index.Close()
	}
	return nil
}
