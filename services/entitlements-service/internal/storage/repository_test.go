package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	mock   pgxmock.PgxPoolIface
	repo   *Repository
	userID string
	ctx    context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	require.NoError(s.T(), err)
	s.mock = mock
	s.repo = NewRepository(mock)
	s.userID = uuid.NewString()
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) TestLatestPayment_Found() {
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	expires := created.AddDate(0, 1, 0)
	s.mock.ExpectQuery(`FROM payments\s+WHERE user_id = \$1\s+ORDER BY created_at DESC\s+LIMIT 1`).
		WithArgs(s.userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "plan_name", "status", "expires_at", "created_at"}).
			AddRow("pay-1", s.userID, "Plano Teams", "paid", &expires, created))

	p, err := s.repo.LatestPayment(s.ctx, s.userID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), p)
	assert.Equal(s.T(), "pay-1", p.ID)
	assert.Equal(s.T(), "Plano Teams", p.PlanName)
	require.NotNil(s.T(), p.ExpiresAt)
	assert.True(s.T(), p.ExpiresAt.Equal(expires))
}

func (s *RepositoryTestSuite) TestLatestPayment_None() {
	s.mock.ExpectQuery(`FROM payments`).
		WithArgs(s.userID).
		WillReturnError(pgx.ErrNoRows)

	p, err := s.repo.LatestPayment(s.ctx, s.userID)
	assert.NoError(s.T(), err)
	assert.Nil(s.T(), p)
}

func (s *RepositoryTestSuite) TestLatestPayment_Error() {
	s.mock.ExpectQuery(`FROM payments`).
		WithArgs(s.userID).
		WillReturnError(errors.New("connection reset"))

	_, err := s.repo.LatestPayment(s.ctx, s.userID)
	assert.Error(s.T(), err)
}

func (s *RepositoryTestSuite) TestLatestSubscription_Found() {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery(`FROM subscriptions\s+WHERE user_id = \$1`).
		WithArgs(s.userID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "plan_name", "status", "trial_ends_at", "created_at"}).
			AddRow("sub-1", s.userID, "trial", "trial", nil, created))

	sub, err := s.repo.LatestSubscription(s.ctx, s.userID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), sub)
	assert.Equal(s.T(), "trial", sub.Status)
	assert.Nil(s.T(), sub.TrialEndsAt)
}

func (s *RepositoryTestSuite) TestLatestSubscription_None() {
	s.mock.ExpectQuery(`FROM subscriptions`).
		WithArgs(s.userID).
		WillReturnError(pgx.ErrNoRows)

	sub, err := s.repo.LatestSubscription(s.ctx, s.userID)
	assert.NoError(s.T(), err)
	assert.Nil(s.T(), sub)
}

func (s *RepositoryTestSuite) TestCountBusinesses() {
	s.mock.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM businesses`).
		WithArgs(s.userID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.repo.CountBusinesses(s.ctx, s.userID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 2, n)
}

func (s *RepositoryTestSuite) TestOwnedBusinessIDs() {
	s.mock.ExpectQuery(`SELECT id::text\s+FROM businesses`).
		WithArgs(s.userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("b-1").AddRow("b-2"))

	ids, err := s.repo.OwnedBusinessIDs(s.ctx, s.userID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"b-1", "b-2"}, ids)
}

func (s *RepositoryTestSuite) TestCountAppointments() {
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 23, 59, 59, 999999999, time.UTC)
	ids := []string{"b-1", "b-2"}
	s.mock.ExpectQuery(`FROM appointments\s+WHERE business_id = ANY\(\$1::uuid\[\]\)\s+AND start_time >= \$2\s+AND start_time <= \$3\s+AND status <> \$4`).
		WithArgs(ids, from, to, "cancelled").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(17))

	n, err := s.repo.CountAppointments(s.ctx, ids, from, to, "cancelled")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 17, n)
}

func (s *RepositoryTestSuite) TestCountAppointments_NoBusinessesSkipsQuery() {
	n, err := s.repo.CountAppointments(s.ctx, nil, time.Now(), time.Now(), "cancelled")
	require.NoError(s.T(), err)
	assert.Zero(s.T(), n)
}
