package docstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/observation"
)

var errObservationIDTaken = errors.WithMessage(core.ErrConflict, "observation id already exists")

type ObservationRepository struct {
	coll collection[observation.Observation]
}

var _ observation.Repository = (*ObservationRepository)(nil)

func NewObservationRepository(s *Store) *ObservationRepository {
	return &ObservationRepository{coll: collection[observation.Observation]{
		store: s,
		key:   keyObservations,
		id:    func(o observation.Observation) string { return o.ID },
	}}
}

func (repo *ObservationRepository) CreateObservation(ctx context.Context, o observation.Observation) (observation.Observation, error) {
	return repo.coll.insert(ctx, o, errObservationIDTaken)
}

func (repo *ObservationRepository) QueryAllObservations(ctx context.Context) ([]observation.Observation, error) {
	return repo.coll.all(ctx)
}
