package strains

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	strains []Strain
	similar []SimilarStrain
}

func (f *fakeRepo) List(ctx context.Context, page, pageSize int) ([]Strain, error) {
	return f.strains, nil
}

func (f *fakeRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(f.strains)), nil
}

func (f *fakeRepo) Search(ctx context.Context, query string, limit int) ([]Strain, error) {
	var out []Strain
	for _, s := range f.strains {
		if s.Name == query {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetBySlug(ctx context.Context, slug string) (*Strain, error) {
	for _, s := range f.strains {
		if s.Slug == slug {
			return &s, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) SearchSimilar(ctx context.Context, id uuid.UUID, limit int) ([]SimilarStrain, error) {
	return f.similar, nil
}

func (f *fakeRepo) SetEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	return nil
}

func newStrainRouter(repo Repository) http.Handler {
	h := NewHandler(repo)
	r := chi.NewRouter()
	r.Get("/strains", h.List)
	r.Get("/strains/{slug}", h.Get)
	r.Get("/strains/{slug}/similar", h.Similar)
	return r
}

func TestList(t *testing.T) {
	repo := &fakeRepo{strains: []Strain{
		{ID: uuid.New(), Slug: "blue-dream", Name: "Blue Dream", Type: TypeHybrid},
		{ID: uuid.New(), Slug: "northern-lights", Name: "Northern Lights", Type: TypeIndica},
	}}
	router := newStrainRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/strains", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data       []Strain `json:"data"`
		TotalCount int64    `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
	assert.Equal(t, int64(2), body.TotalCount)
}

func TestGetBySlug(t *testing.T) {
	repo := &fakeRepo{strains: []Strain{
		{ID: uuid.New(), Slug: "blue-dream", Name: "Blue Dream", Type: TypeHybrid},
	}}
	router := newStrainRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/strains/blue-dream", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data Strain `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Blue Dream", body.Data.Name)
}

func TestGetBySlug_NotFound(t *testing.T) {
	router := newStrainRouter(&fakeRepo{})

	req := httptest.NewRequest(http.MethodGet, "/strains/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimilar(t *testing.T) {
	id := uuid.New()
	repo := &fakeRepo{
		strains: []Strain{{ID: id, Slug: "blue-dream", Name: "Blue Dream"}},
		similar: []SimilarStrain{
			{Strain: Strain{Slug: "super-silver-haze", Name: "Super Silver Haze"}, Similarity: 0.91},
		},
	}
	router := newStrainRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/strains/blue-dream/similar", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []SimilarStrain `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "super-silver-haze", body.Data[0].Slug)
	assert.InDelta(t, 0.91, body.Data[0].Similarity, 1e-9)
}

func TestSimilar_UnknownStrain(t *testing.T) {
	router := newStrainRouter(&fakeRepo{})

	req := httptest.NewRequest(http.MethodGet, "/strains/nope/similar", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
