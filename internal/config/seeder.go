package config

import (
	"log"
	"time"

	"condogate/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Println("🌱 Running database seeders...")

	if err := s.seedUnits(); err != nil {
		log.Printf("⚠️ Unit seeder skipped: %v", err)
	}

	log.Println("✅ Database seeding completed")
	return nil
}

// seedUnits seeds a minimal block/unit grid for development.
// Production complexes load their real layout through the API.
func (s *Seeder) seedUnits() error {
	var count int64
	s.db.Model(&models.HousingUnit{}).Count(&count)
	if count > 0 {
		return nil // Units already exist
	}

	now := time.Now()
	blocks := []string{"A", "B"}
	for _, block := range blocks {
		for i := 1; i <= 4; i++ {
			unit := &models.HousingUnit{
				Block:     block,
				Unit:      string(rune('0' + i)),
				Lifecycle: models.NewLifecycle("seed", now),
			}
			if err := s.db.Create(unit).Error; err != nil {
				return err
			}
		}
	}

	log.Printf("🌱 Seeded %d housing units", len(blocks)*4)
	return nil
}
