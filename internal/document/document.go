// Package document normalizes CivicPlus document center payloads.
package document

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
)

// UnnamedPlaceholder is used when an item carries neither DisplayName nor Name.
const UnnamedPlaceholder = "(unnamed)"

// Document is one file listed in the watched folder.
type Document struct {
	ID   *int64 `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// HasID reports whether the document can take part in diffing.
func (d Document) HasID() bool {
	return d.ID != nil
}

func (d Document) sortID() int64 {
	if d.ID == nil {
		return 0
	}
	return *d.ID
}

// Line renders the document as a notification bullet. The direct URL is
// preferred; without one the numeric ID is shown.
func (d Document) Line() string {
	if d.URL != "" {
		return fmt.Sprintf("- **%s** (%s)", d.Name, d.URL)
	}
	id := "unknown"
	if d.ID != nil {
		id = strconv.FormatInt(*d.ID, 10)
	}
	return fmt.Sprintf("- **%s** (ID: %s)", d.Name, id)
}

type payload struct {
	Documents []item `json:"Documents"`
}

type item struct {
	ID          *int64 `json:"ID"`
	DisplayName string `json:"DisplayName"`
	Name        string `json:"Name"`
	FileURL     string `json:"FileUrl"`
	URL         string `json:"Url"`
}

// Extract decodes a Document_AjaxBinding response into documents sorted by
// (id, name). A missing or null Documents key yields an empty slice.
func Extract(raw []byte) ([]Document, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode portal payload: %w", err)
	}

	docs := make([]Document, 0, len(p.Documents))
	for _, it := range p.Documents {
		docs = append(docs, Document{
			ID:   it.ID,
			Name: firstNonEmpty(it.DisplayName, it.Name, UnnamedPlaceholder),
			URL:  firstNonEmpty(it.FileURL, it.URL),
		})
	}
	slices.SortStableFunc(docs, func(a, b Document) int {
		return cmp.Or(
			cmp.Compare(a.sortID(), b.sortID()),
			cmp.Compare(a.Name, b.Name),
		)
	})
	return docs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// IDSet collects the IDs of documents that have one.
func IDSet(docs []Document) map[int64]struct{} {
	set := make(map[int64]struct{}, len(docs))
	for _, d := range docs {
		if d.ID != nil {
			set[*d.ID] = struct{}{}
		}
	}
	return set
}

// SortedIDs returns the members of set in ascending order.
func SortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Difference returns the IDs in current that are absent from seen.
func Difference(current, seen map[int64]struct{}) map[int64]struct{} {
	out := make(map[int64]struct{})
	for id := range current {
		if _, ok := seen[id]; !ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// Select keeps the documents whose ID is in ids, preserving order.
func Select(docs []Document, ids map[int64]struct{}) []Document {
	var out []Document
	for _, d := range docs {
		if d.ID == nil {
			continue
		}
		if _, ok := ids[*d.ID]; ok {
			out = append(out, d)
		}
	}
	return out
}
