package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestSQLQuotesTableName(t *testing.T) {
	for _, q := range []string{createTableSQL("my ledgers"), selectSQL("my ledgers"), upsertSQL("my ledgers")} {
		if !strings.Contains(q, `"my ledgers"`) {
			t.Errorf("table not quoted in %q", q)
		}
	}
	if !strings.Contains(upsertSQL(DefaultTable), "ON CONFLICT (user_id)") {
		t.Error("upsert must overwrite the whole document")
	}
}

func TestDescribeKeepsCause(t *testing.T) {
	pqErr := &pq.Error{Code: "08006", Message: "connection failure"}
	err := describe(pqErr)
	if !errors.Is(err, pqErr) {
		t.Fatal("cause lost")
	}
	if !strings.Contains(err.Error(), "connection_exception") {
		t.Fatalf("expected class name, got %q", err)
	}

	plain := errors.New("boom")
	if describe(plain) != plain {
		t.Fatal("non-pq errors pass through")
	}
}
