package docstore

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/staff"
)

var errMemberIDTaken = errors.WithMessage(core.ErrConflict, "staff member id already exists")

// staffRecord keeps the password hash, which staff.Member never serializes.
type staffRecord struct {
	staff.Member
	PasswordHash []byte `json:"password_hash,omitempty"`
}

func toStaffRecord(m staff.Member) staffRecord {
	return staffRecord{Member: m, PasswordHash: m.PasswordHash}
}

func (rec staffRecord) member() staff.Member {
	m := rec.Member
	m.PasswordHash = rec.PasswordHash
	return m
}

type StaffRepository struct {
	coll collection[staffRecord]
}

var _ staff.Repository = (*StaffRepository)(nil)

func NewStaffRepository(s *Store) *StaffRepository {
	return &StaffRepository{coll: collection[staffRecord]{
		store: s,
		key:   keyStaff,
		id:    func(rec staffRecord) string { return rec.ID },
	}}
}

func (repo *StaffRepository) CreateMember(ctx context.Context, m staff.Member) (staff.Member, error) {
	rec, err := repo.coll.insert(ctx, toStaffRecord(m), errMemberIDTaken)
	return rec.member(), err
}

func (repo *StaffRepository) SaveMember(ctx context.Context, m staff.Member) (staff.Member, error) {
	rec, err := repo.coll.replace(ctx, toStaffRecord(m), staff.ErrNotFound, nil)
	return rec.member(), err
}

func (repo *StaffRepository) QueryAllMembers(ctx context.Context) ([]staff.Member, error) {
	recs, err := repo.coll.all(ctx)
	if err != nil {
		return nil, err
	}
	members := make([]staff.Member, 0, len(recs))
	for _, rec := range recs {
		members = append(members, rec.member())
	}
	return members, nil
}

func (repo *StaffRepository) GetMemberByID(ctx context.Context, id string) (staff.Member, error) {
	rec, err := repo.coll.get(ctx, id, staff.ErrNotFound)
	return rec.member(), err
}

func (repo *StaffRepository) GetMemberByEmail(ctx context.Context, email string) (staff.Member, error) {
	rec, err := repo.coll.find(ctx, func(rec staffRecord) bool {
		return strings.EqualFold(rec.Email, email)
	}, staff.ErrNotFound)
	return rec.member(), err
}

func (repo *StaffRepository) DeleteMembersByID(ctx context.Context, ids ...string) error {
	return repo.coll.remove(ctx, ids...)
}
