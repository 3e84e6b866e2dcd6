package storage

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// SaveCacheEntry inserts a semantic cache row.
func (s *Store) SaveCacheEntry(e CacheEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (id, prompt, embedding, response_text, actions_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Prompt, encodeEmbedding(e.Embedding), e.Text, e.ActionsJSON,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// AllCacheEntries returns every cache row. The table is small (one row per
// unique answered prompt), so lookups scan it in full.
func (s *Store) AllCacheEntries() ([]CacheEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, prompt, embedding, response_text, actions_json, created_at
		FROM cache_entries`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []CacheEntry
	for rows.Next() {
		var e CacheEntry
		var blob []byte
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Prompt, &blob, &e.Text, &e.ActionsJSON, &createdAt); err != nil {
			return nil, err
		}
		emb, err := decodeEmbedding(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", e.ID, err)
		}
		e.Embedding = emb
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		e.CreatedAt = t
		results = append(results, e)
	}
	return results, rows.Err()
}

// encodeEmbedding serializes a float32 slice to little-endian bytes.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}
