package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserversCountByResult(t *testing.T) {
	Init(nil, nil)

	before := testutil.ToFloat64(statementAssembleTotal.WithLabelValues(ResultError))
	ObserveStatementAssemble(ResultError, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(statementAssembleTotal.WithLabelValues(ResultError)))

	ObserveStatementExport("", "", time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(statementExportTotal.WithLabelValues("unknown", ResultSuccess)), 1.0)

	inc := testutil.ToFloat64(inconsistencyTotal)
	IncInconsistency()
	assert.Equal(t, inc+1, testutil.ToFloat64(inconsistencyTotal))

	IncSweepAccount(ResultInconsistent)
	assert.GreaterOrEqual(t, testutil.ToFloat64(sweepAccountsTotal.WithLabelValues(ResultInconsistent)), 1.0)

	now := time.Unix(1767225600, 0)
	MarkSweepCompleted(now)
	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(sweepLastRun))
}

func TestQueryCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bills").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	assert.Equal(t, 7.0, queryCount(db, nil, "SELECT COUNT(*) FROM bills WHERE status IN ('pending', 'overdue')"))

	logger, hook := test.NewNullLogger()
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM payments").WillReturnError(errors.New("boom"))
	assert.Equal(t, 0.0, queryCount(db, logger, "SELECT COUNT(*) FROM payments WHERE status = 'pending'"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 0.0, queryCount(nil, nil, "SELECT 1"))
}
