package store

import (
	"context"
	"encoding/binary"
	"math"
	"sort"

	"github.com/kimjune01/slunk/internal/slunkerr"
)

// encodeVector packs a float32 vector as little-endian bytes, the BLOB
// layout embeddings.vector stores.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// VectorHit is one nearest-neighbor result: a message id and its distance
// under the store's configured metric (lower is always closer, regardless
// of metric — cosine distance is 1 - cosine_similarity).
type VectorHit struct {
	MessageID string
	Distance  float64
}

// NearestNeighbors brute-force scans every stored embedding and returns
// the topK closest to query under the store's configured metric. This is
// the store's entire vector index: appropriate at single-user,
// single-host scale (thousands to low millions of rows) without standing
// up a second server process.
func (s *Store) NearestNeighbors(ctx context.Context, channelIDs []string, query []float32, topK int) ([]VectorHit, error) {
	q := `SELECT e.message_id, e.vector FROM embeddings e JOIN messages m ON m.id = e.message_id`
	args := []any{}
	if len(channelIDs) > 0 {
		q += " WHERE m.channel_id IN (" + placeholders(len(channelIDs)) + ")"
		for _, id := range channelIDs {
			args = append(args, id)
		}
	}

	rows, err := s.read.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "scan embeddings")
	}
	defer rows.Close()

	metric := distanceFunc(s.vectorMetric)
	var hits []VectorHit
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, slunkerr.Wrap(slunkerr.KindStoreTransient, err, "scan embedding row")
		}
		vec := decodeVector(blob)
		if len(vec) != len(query) {
			continue
		}
		hits = append(hits, VectorHit{MessageID: id, Distance: metric(query, vec)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func placeholders(n int) string {
	b := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}

func distanceFunc(metric string) func(a, b []float32) float64 {
	switch metric {
	case "l2":
		return l2Distance
	default:
		return cosineDistance
	}
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
