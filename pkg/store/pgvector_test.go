package store_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apexline/paddock/internal/models"
	"github.com/apexline/paddock/pkg/store"
)

func TestMetricOperators(t *testing.T) {
	tests := []struct {
		metric  store.Metric
		op      string
		opClass string
	}{
		{store.MetricCosine, "<=>", "vector_cosine_ops"},
		{store.MetricDotProduct, "<#>", "vector_ip_ops"},
		{store.MetricEuclidean, "<->", "vector_l2_ops"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.op, tt.metric.Operator())
		assert.Equal(t, tt.opClass, tt.metric.OpClass())
		assert.True(t, tt.metric.Valid())
	}
	assert.False(t, store.Metric("manhattan").Valid())
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "clean text", store.SanitizeUTF8("clean text"))
	assert.Equal(t, "ab", store.SanitizeUTF8("a\xffb"))
	assert.Equal(t, "é", store.SanitizeUTF8("é"))

	// Dedup key stability: sanitizing twice changes nothing, so the text
	// looked up by FindExact equals the text Insert stores.
	dirty := "Monza \xff\xfe record"
	once := store.SanitizeUTF8(dirty)
	assert.True(t, utf8.ValidString(once))
	assert.Equal(t, once, store.SanitizeUTF8(once))
}

func TestVectorStore_UnknownMetric(t *testing.T) {
	_, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{
		ConnString: "postgresql://localhost:5432/paddock",
		Metric:     "manhattan",
	})
	assert.Error(t, err)
}

// The remaining tests need a postgres with pgvector; they are skipped
// unless DATABASE_URL points at one.
func testStore(t *testing.T, dim int) *store.VectorStore {
	t.Helper()
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	s, err := store.NewWithConfig(context.Background(), store.VectorStoreConfig{
		ConnString: connString,
		Collection: "test_paddock_chunks",
		VectorDim:  dim,
		Metric:     store.MetricDotProduct,
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func testVector(dim int, seed float32) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = seed + float32(i)*0.001
	}
	return v
}

func TestVectorStore_InsertFindQuery(t *testing.T) {
	const dim = 8
	s := testStore(t, dim)
	ctx := context.Background()

	text := fmt.Sprintf("hamilton monza lap record %d", os.Getpid())

	found, err := s.FindExact(ctx, text)
	require.NoError(t, err)
	require.Nil(t, found, "record must not exist before insert")

	id, err := s.Insert(ctx, models.VectorRecord{
		Vector: testVector(dim, 0.5),
		Text:   text,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	found, err = s.FindExact(ctx, text)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, found.ID)
	assert.Equal(t, text, found.Text)

	results, err := s.NearestNeighbors(ctx, testVector(dim, 0.5), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, text, results[0].Text)
}

func TestVectorStore_DimensionMismatch(t *testing.T) {
	const dim = 8
	s := testStore(t, dim)

	_, err := s.Insert(context.Background(), models.VectorRecord{
		Vector: testVector(dim+1, 0.1),
		Text:   "wrong width",
	})
	assert.Error(t, err)
}
