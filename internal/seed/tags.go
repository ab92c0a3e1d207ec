package seed

import (
	"fmt"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BuiltInTag is a topic every installation starts with.
type BuiltInTag struct {
	Name        string
	Description string
}

// BuiltInTags defines the default topic catalog.
var BuiltInTags = []BuiltInTag{
	{Name: "go", Description: "The Go programming language."},
	{Name: "web development", Description: "Frontend, backend and everything over HTTP."},
	{Name: "databases", Description: "Storage engines, SQL and data modeling."},
	{Name: "devops", Description: "Deployments, CI and operations."},
	{Name: "distributed systems", Description: "Consensus, queues and failure modes."},
	{Name: "security", Description: "Application and infrastructure security."},
	{Name: "career", Description: "Growing as an engineer."},
	{Name: "tutorials", Description: "Step by step guides."},
	{Name: "open source", Description: "Projects, maintainers and licensing."},
	{Name: "ai", Description: "Machine learning tools and research."},
	{Name: "linux", Description: "Distros, tooling and workflows."},
	{Name: "writing", Description: "Technical writing and blogging."},
}

// Tags upserts the built-in catalog. Existing tags keep their counters.
func Tags(db *gorm.DB) ([]models.Tag, error) {
	out := make([]models.Tag, 0, len(BuiltInTags))
	for _, item := range BuiltInTags {
		tag := models.Tag{Name: item.Name, Description: item.Description}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"description", "updated_at"}),
		}).Create(&tag).Error; err != nil {
			return nil, fmt.Errorf("seed built-in tag %s: %w", item.Name, err)
		}
		if tag.ID == 0 {
			if err := db.Where("name = ?", models.NormalizeTagName(item.Name)).First(&tag).Error; err != nil {
				return nil, fmt.Errorf("load built-in tag %s: %w", item.Name, err)
			}
		}
		out = append(out, tag)
	}
	return out, nil
}
