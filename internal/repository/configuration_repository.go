package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-adaptive/internal/model"
)

// ConfigurationRepository reads per-(grade, subject) assessment limits.
type ConfigurationRepository struct {
	pool *pgxpool.Pool
}

// NewConfigurationRepository creates a new ConfigurationRepository.
func NewConfigurationRepository(pool *pgxpool.Pool) *ConfigurationRepository {
	return &ConfigurationRepository{pool: pool}
}

// Get returns the configuration for a grade and subject, or ErrNotFound.
func (r *ConfigurationRepository) Get(ctx context.Context, gradeID, subjectID int) (*model.AssessmentConfiguration, error) {
	c := &model.AssessmentConfiguration{}
	err := r.pool.QueryRow(ctx,
		`SELECT grade_id, subject_id, time_limit_minutes, max_questions
		 FROM assessment_configurations
		 WHERE grade_id = $1 AND subject_id = $2`, gradeID, subjectID,
	).Scan(&c.GradeID, &c.SubjectID, &c.TimeLimitMinutes, &c.MaxQuestions)
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}
