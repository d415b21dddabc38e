// Package split cuts normalized document text into one block per assay.
package split

import (
	"sort"
	"strings"

	apperrors "github.com/a3tai/assay-sheets/internal/errors"
)

// AssayDescriptor pairs an assay key with the human label that starts its
// block in the report
type AssayDescriptor struct {
	AssayKey  string `json:"assay_key"`
	AssayName string `json:"assay_name"`
}

type anchor struct {
	pos   int
	assay AssayDescriptor
}

// ByNameAndKey anchors each assay at the first occurrence of its name,
// provided its key occurs at or after that position, and cuts the text
// between consecutive anchors. Every requested assay must yield a
// non-empty block.
func ByNameAndKey(normText string, assays []AssayDescriptor) (map[string]string, error) {
	if len(assays) == 0 {
		return nil, apperrors.Split("content_split_failed: no assays provided")
	}

	anchors := make([]anchor, 0, len(assays))
	for _, a := range assays {
		if a.AssayName == "" || a.AssayKey == "" {
			return nil, apperrors.Split("content_split_failed: assay descriptor missing assay_name/assay_key")
		}

		start := strings.Index(normText, a.AssayName)
		if start < 0 {
			return nil, apperrors.Split("content_split_failed: assay_name not found: %s", a.AssayName).WithKey(a.AssayKey)
		}
		if !strings.Contains(normText[start:], a.AssayKey) {
			return nil, apperrors.Split("content_split_failed: assay_key %s not found after assay_name %s",
				a.AssayKey, a.AssayName).WithKey(a.AssayKey)
		}
		anchors = append(anchors, anchor{pos: start, assay: a})
	}

	sort.SliceStable(anchors, func(i, j int) bool {
		return anchors[i].pos < anchors[j].pos
	})

	blocks := make(map[string]string, len(anchors))
	for i, an := range anchors {
		end := len(normText)
		if i+1 < len(anchors) {
			end = anchors[i+1].pos
		}
		block := strings.TrimSpace(normText[an.pos:end])
		if block == "" {
			return nil, apperrors.Split("content_split_failed: empty block for assay_key %s", an.assay.AssayKey).
				WithKey(an.assay.AssayKey)
		}
		blocks[an.assay.AssayKey] = block
	}

	if !sameKeys(blocks, assays) {
		return nil, apperrors.Split("content_split_failed: mismatch assay_keys vs blocks")
	}
	return blocks, nil
}

// ByKeys splits on the assay keys themselves, each key being its own anchor
func ByKeys(normText string, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return nil, apperrors.Split("content_split_failed: no assay_keys provided")
	}
	assays := make([]AssayDescriptor, len(keys))
	for i, k := range keys {
		assays[i] = AssayDescriptor{AssayKey: k, AssayName: k}
	}
	return ByNameAndKey(normText, assays)
}

func sameKeys(blocks map[string]string, assays []AssayDescriptor) bool {
	want := make(map[string]struct{}, len(assays))
	for _, a := range assays {
		want[a.AssayKey] = struct{}{}
	}
	if len(want) != len(blocks) {
		return false
	}
	for k := range blocks {
		if _, ok := want[k]; !ok {
			return false
		}
	}
	return true
}
