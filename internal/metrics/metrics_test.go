package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQuery(t *testing.T) {
	before := testutil.ToFloat64(DBQueriesTotal.WithLabelValues("SELECT", "measurements", "error"))
	RecordDBQuery("SELECT", "measurements", 5*time.Millisecond, errors.New("boom"))
	after := testutil.ToFloat64(DBQueriesTotal.WithLabelValues("SELECT", "measurements", "error"))

	if after-before != 1 {
		t.Errorf("error counter delta = %v, want 1", after-before)
	}
}

func TestRecordUnknownCategory(t *testing.T) {
	before := testutil.ToFloat64(UnknownCategoriesTotal.WithLabelValues("test"))
	RecordUnknownCategory("test")
	RecordUnknownCategory("test")
	if got := testutil.ToFloat64(UnknownCategoriesTotal.WithLabelValues("test")) - before; got != 2 {
		t.Errorf("unknown category delta = %v, want 2", got)
	}
}

func TestRecordSimilarityBuild(t *testing.T) {
	RecordSimilarityBuild(7, 10*time.Millisecond)
	if got := testutil.ToFloat64(SimilarityStations); got != 7 {
		t.Errorf("SimilarityStations = %v, want 7", got)
	}
}

func TestUpdateDBConnectionStats(t *testing.T) {
	UpdateDBConnectionStats(10, 3, 7)
	if got := testutil.ToFloat64(DBConnectionsInUse); got != 3 {
		t.Errorf("DBConnectionsInUse = %v, want 3", got)
	}
	if got := testutil.ToFloat64(DBConnectionsIdle); got != 7 {
		t.Errorf("DBConnectionsIdle = %v, want 7", got)
	}
}
