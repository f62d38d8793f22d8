package strains

import (
	"time"

	"github.com/google/uuid"
)

// Strain types match the catalog seed data.
const (
	TypeIndica = "indica"
	TypeSativa = "sativa"
	TypeHybrid = "hybrid"
)

// Strain is one catalog entry. Embedding is an optional vector over the
// strain's description used for similar-strain lookup; it never leaves
// the API.
type Strain struct {
	ID             uuid.UUID `json:"id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Lineage        string    `json:"lineage,omitempty"`
	Breeder        string    `json:"breeder,omitempty"`
	THCPercent     float64   `json:"thc_percent"`
	CBDPercent     float64   `json:"cbd_percent"`
	FloweringWeeks int       `json:"flowering_weeks"`
	Difficulty     string    `json:"difficulty,omitempty"`
	Terpenes       []string  `json:"terpenes,omitempty"`
	Effects        []string  `json:"effects,omitempty"`
	Description    string    `json:"description,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SimilarStrain is a similarity-search hit.
type SimilarStrain struct {
	Strain
	Similarity float64 `json:"similarity"`
}
