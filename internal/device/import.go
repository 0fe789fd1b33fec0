package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// happi fields that map onto Entry columns rather than metadata.
const (
	happiIDField = "_id"
	activeField  = "active"
)

// ImportResult summarises an ImportJSON run.
type ImportResult struct {
	// Imported is the number of items upserted.
	Imported int
	// Pruned is the number of stored entries removed because the document
	// no longer lists them.
	Pruned int
	// Total is the size of the directory afterwards.
	Total int
}

// ImportJSON reads a happi JSON database, an object of name to item object,
// and upserts every item into repo. Items are imported in name order.
// Unknown item keys become metadata; a missing active flag means active.
//
// With prune set, stored entries absent from the document are deleted so
// that the directory mirrors it. Nothing is pruned when an item fails.
func ImportJSON(ctx context.Context, repo Repository, r io.Reader, prune bool) (ImportResult, error) {
	var res ImportResult
	var doc map[string]map[string]any
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return res, fmt.Errorf("%w: decoding device database: %v", ErrInvalidEntry, err)
	}

	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e, err := entryFromItem(key, doc[key])
		if err != nil {
			return res, err
		}
		if err := repo.Upsert(ctx, &e); err != nil {
			return res, fmt.Errorf("importing %q: %w", key, err)
		}
		seen[e.Name] = struct{}{}
		res.Imported++
	}

	if prune {
		stored, err := repo.List(ctx)
		if err != nil {
			return res, fmt.Errorf("listing devices to prune: %w", err)
		}
		for _, e := range stored {
			if _, ok := seen[e.Name]; ok {
				continue
			}
			if err := repo.Delete(ctx, e.Name); err != nil && !errors.Is(err, ErrDeviceNotFound) {
				return res, fmt.Errorf("pruning %q: %w", e.Name, err)
			}
			res.Pruned++
		}
	}

	total, err := repo.Count(ctx)
	if err != nil {
		return res, err
	}
	res.Total = total
	return res, nil
}

func entryFromItem(key string, item map[string]any) (Entry, error) {
	if item == nil {
		return Entry{}, fmt.Errorf("%w: item %q is not an object", ErrInvalidEntry, key)
	}

	e := Entry{Name: key, Active: true, Metadata: map[string]any{}}
	for k, v := range item {
		switch k {
		case happiIDField:
		case FieldName:
			s, ok := v.(string)
			if !ok || strings.TrimSpace(s) == "" {
				return Entry{}, fmt.Errorf("%w: item %q has an invalid name", ErrInvalidEntry, key)
			}
			e.Name = s
		case FieldBeamline:
			s, ok := v.(string)
			if !ok {
				return Entry{}, fmt.Errorf("%w: item %q beamline must be a string", ErrInvalidEntry, key)
			}
			e.Beamline = s
		case FieldDeviceClass:
			s, ok := v.(string)
			if !ok {
				return Entry{}, fmt.Errorf("%w: item %q device_class must be a string", ErrInvalidEntry, key)
			}
			e.DeviceClass = s
		case activeField:
			b, ok := v.(bool)
			if !ok {
				return Entry{}, fmt.Errorf("%w: item %q active must be a boolean", ErrInvalidEntry, key)
			}
			e.Active = b
		default:
			e.Metadata[k] = v
		}
	}
	if len(e.Metadata) == 0 {
		e.Metadata = nil
	}
	return e, nil
}
