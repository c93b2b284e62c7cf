package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/opskb/internal/db"
)

// CreateVectorIndex creates an FT index over hash documents with an HNSW
// cosine vector field and TAG fields for filtering. Existing indexes are
// left untouched.
func (s *Store) CreateVectorIndex(ctx context.Context, def *db.VectorIndexDef) error {
	if def.Name == "" || def.Prefix == "" {
		return fmt.Errorf("index name and prefix are required")
	}
	if def.Dimensions <= 0 {
		return fmt.Errorf("dimensions must be positive")
	}

	m := def.HNSWM
	if m <= 0 {
		m = 16
	}
	ef := def.EFConstruct
	if ef <= 0 {
		ef = 200
	}

	args := []string{
		def.Name,
		"ON", "HASH",
		"PREFIX", "1", def.Prefix,
		"SCHEMA",
	}
	for _, tag := range def.TagFields {
		args = append(args, tag, "TAG")
	}
	args = append(args,
		"vector", "VECTOR", "HNSW", "12",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(def.Dimensions),
		"DISTANCE_METRIC", "COSINE",
		"M", strconv.Itoa(m),
		"EF_CONSTRUCTION", strconv.Itoa(ef),
	)

	cmd := s.b().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "index already exists") {
			return db.ErrIndexExists
		}
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	return nil
}

// IndexExists reports whether an FT index exists.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	cmd := s.b().Arbitrary("FT.INFO").Args(name).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index") || isRedisErr(err, "no such index") {
			return false, nil
		}
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	return true, nil
}

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.KNNEntry, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	filterStr := buildTagFilter(q.TagFilters)

	knnPart := fmt.Sprintf("[KNN %d @vector $BLOB AS __vector_score]", q.K)
	var queryStr string
	if filterStr != "" {
		queryStr = fmt.Sprintf("(%s)=>%s", filterStr, knnPart)
	} else {
		queryStr = fmt.Sprintf("*=>%s", knnPart)
	}

	args := []string{
		q.IndexName, queryStr,
		"RETURN", "1", "__vector_score",
		"SORTBY", "__vector_score",
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index") || isRedisErr(err, "no such index") {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw)
}

// buildTagFilter renders {field:{value}} clauses joined by space (AND).
func buildTagFilter(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	parts := make([]string, 0, len(filters))
	for field, value := range filters {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", field, escapeTag(value)))
	}
	return strings.Join(parts, " ")
}

// escapeTag escapes characters with special meaning in TAG queries.
func escapeTag(v string) string {
	r := strings.NewReplacer(
		",", "\\,", ".", "\\.", "<", "\\<", ">", "\\>", "{", "\\{", "}", "\\}",
		"[", "\\[", "]", "\\]", "\"", "\\\"", "'", "\\'", ":", "\\:", ";", "\\;",
		"!", "\\!", "@", "\\@", "#", "\\#", "$", "\\$", "%", "\\%", "^", "\\^",
		"&", "\\&", "*", "\\*", "(", "\\(", ")", "\\)", "-", "\\-", "+", "\\+",
		"=", "\\=", "~", "\\~", " ", "\\ ",
	)
	return r.Replace(v)
}

func parseKNNResult(raw []rueidis.RedisMessage) ([]db.KNNEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	entries := make([]db.KNNEntry, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entry := db.KNNEntry{Key: key}
		for j := 0; j+1 < len(fields); j += 2 {
			name, _ := fields[j].ToString()
			if name != "__vector_score" {
				continue
			}
			val, _ := fields[j+1].ToString()
			if d, err := strconv.ParseFloat(val, 64); err == nil {
				entry.Distance = d
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
