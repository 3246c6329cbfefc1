package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/onboarding-api/internal/models"
)

func TestResponseRepositoryUpsertStepRunsInOneTx(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)INSERT INTO onboarding_responses .+ON CONFLICT \(session_id, step_id, field_id\)`).
		WithArgs(sqlmock.AnyArg(), "sess-1", "step-1", "company", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO onboarding_responses").
		WithArgs(sqlmock.AnyArg(), "sess-1", "step-1", "budget", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	responses := []models.Response{
		{FieldID: "company", Value: models.StringValue("Acme")},
		{FieldID: "budget", Value: models.NumberValue(25000)},
	}
	require.NoError(t, repo.UpsertStep(context.Background(), "sess-1", "step-1", responses))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepositoryUpsertStepRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO onboarding_responses").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.UpsertStep(context.Background(), "sess-1", "step-1",
		[]models.Response{{FieldID: "company", Value: models.StringValue("Acme")}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepositoryUpsertStepEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	require.NoError(t, repo.UpsertStep(context.Background(), "sess-1", "step-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResponseRepositoryListBySession(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewResponseRepository(db)

	value, _ := models.StringsValue([]string{"seo", "ads"}).Value()
	rows := sqlmock.NewRows([]string{"id", "session_id", "step_id", "field_id", "value", "created_at", "updated_at"}).
		AddRow("resp-1", "sess-1", "step-1", "services", value, time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, session_id, step_id, field_id, value, created_at, updated_at\\s+FROM onboarding_responses WHERE session_id = \\$1").
		WithArgs("sess-1").
		WillReturnRows(rows)

	responses, err := repo.ListBySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, responses, 1)
	assert.Equal(t, models.ValueKindStrings, responses[0].Value.Kind)
	assert.Equal(t, []string{"seo", "ads"}, responses[0].Value.Strings)
	assert.NoError(t, mock.ExpectationsWereMet())
}
