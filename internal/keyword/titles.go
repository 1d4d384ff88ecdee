// Package keyword suggests catalog titles for misspelled or partial game names.
package keyword

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/gamescout/internal/catalog"
)

const (
	nameField = "name"
	batchSize = 1000
)

type titleDoc struct {
	Name string `json:"name"`
}

// TitleIndex is an in-memory full-text index over catalog display names.
type TitleIndex struct {
	index bleve.Index
	names []string
	norms []string
}

// NewTitleIndex indexes every display name in cat. Document IDs are catalog positions.
func NewTitleIndex(cat *catalog.Catalog) (*TitleIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	nameMapping := bleve.NewTextFieldMapping()
	nameMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(nameField, nameMapping)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("failed to create title index: %w", err)
	}
	t := &TitleIndex{
		index: index,
		names: make([]string, 0, cat.Len()),
		norms: make([]string, 0, cat.Len()),
	}

	batch := index.NewBatch()
	cat.Items(func(i int, it catalog.Item) bool {
		t.names = append(t.names, it.DisplayName)
		t.norms = append(t.norms, it.NormalizedName)
		if err = batch.Index(strconv.Itoa(i), titleDoc{Name: it.DisplayName}); err != nil {
			return false
		}
		if batch.Size() >= batchSize {
			if err = index.Batch(batch); err != nil {
				return false
			}
			batch.Reset()
		}
		return true
	})
	if err == nil && batch.Size() > 0 {
		err = index.Batch(batch)
	}
	if err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("failed to index titles: %w", err)
	}
	return t, nil
}

// Suggest returns up to limit display names that fuzzily match text, closest first by edit
// distance between normalized names. Returns an empty slice when nothing matches.
func (t *TitleIndex) Suggest(ctx context.Context, text string, limit int) ([]string, error) {
	want := catalog.Normalize(text)
	terms := queryTerms(want)
	if limit <= 0 || len(terms) == 0 {
		return []string{}, nil
	}

	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzzinessFor(term))
		fq.SetField(nameField)
		queries = append(queries, fq)
	}
	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = max(limit*5, 20)
	res, err := t.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("title search failed: %w", err)
	}

	type candidate struct {
		name  string
		dist  int
		score float64
	}
	seen := make(map[string]struct{}, len(res.Hits))
	cands := make([]candidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= len(t.names) {
			continue
		}
		norm := t.norms[pos]
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		cands = append(cands, candidate{
			name:  t.names[pos],
			dist:  LevenshteinDistance(norm, want),
			score: hit.Score,
		})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].name < cands[j].name
	})

	out := make([]string, 0, min(limit, len(cands)))
	for _, c := range cands {
		if len(out) == limit {
			break
		}
		out = append(out, c.name)
	}
	return out, nil
}

// Size returns the number of indexed titles.
func (t *TitleIndex) Size() int {
	return len(t.names)
}

// Close releases the index.
func (t *TitleIndex) Close() error {
	return t.index.Close()
}

func queryTerms(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// fuzzinessFor allows more edits on longer terms; bleve caps fuzziness at 2.
func fuzzinessFor(term string) int {
	switch n := len([]rune(term)); {
	case n <= 2:
		return 0
	case n <= 5:
		return 1
	default:
		return 2
	}
}
