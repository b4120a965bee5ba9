package repository

import (
	"context"
	"sort"

	"Fixer-backend/internal/apperror"
	"Fixer-backend/internal/geo"
	"Fixer-backend/internal/model"
)

// JobFilter narrows ListJobs. Near with RadiusMiles selects jobs around a point.
type JobFilter struct {
	Status      model.JobStatus
	Category    string
	PosterID    uint
	WorkerID    uint
	Near        *model.Coordinates
	RadiusMiles float64
	Limit       int
}

// NearbyJob is a job with its distance from the search center.
type NearbyJob struct {
	model.Job
	DistanceMiles *float64 `json:"distance_miles,omitempty"`
}

func (s *Store) CreateJob(ctx context.Context, job *model.Job) error {
	return s.db.WithContext(ctx).Create(job).Error
}

func (s *Store) GetJob(ctx context.Context, id uint) (*model.Job, error) {
	var job model.Job
	if err := s.first(ctx, &job, "job", id, "id = ?", id); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns jobs matching f, nearest first when Near is set.
func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]NearbyJob, error) {
	q := s.db.WithContext(ctx).Model(&model.Job{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.PosterID != 0 {
		q = q.Where("poster_id = ?", f.PosterID)
	}
	if f.WorkerID != 0 {
		q = q.Where("worker_id = ?", f.WorkerID)
	}
	if f.Near != nil && f.RadiusMiles > 0 {
		box := geo.BoundingBox(*f.Near, f.RadiusMiles)
		q = q.Where("latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?", box.MinLat, box.MaxLat, box.MinLon, box.MaxLon)
	}

	var jobs []model.Job
	if err := q.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}

	out := make([]NearbyJob, 0, len(jobs))
	for _, j := range jobs {
		nj := NearbyJob{Job: j}
		if f.Near != nil {
			d := geo.DistanceMiles(*f.Near, j.Location())
			if f.RadiusMiles > 0 && d > f.RadiusMiles {
				continue
			}
			nj.DistanceMiles = &d
		}
		out = append(out, nj)
	}

	if f.Near != nil {
		sort.SliceStable(out, func(i, k int) bool {
			return *out[i].DistanceMiles < *out[k].DistanceMiles
		})
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// TransitionJob applies from -> to if the transition table allows it and the
// row still holds from. extra columns are written in the same statement.
func (s *Store) TransitionJob(ctx context.Context, id uint, from, to model.JobStatus, extra map[string]interface{}) error {
	if !from.CanTransitionTo(to) {
		return apperror.InvalidTransition("job", from, to)
	}
	return casUpdate(ctx, s.db, &model.Job{}, "job", id, from, to, extra)
}
