package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/stridehub/achievement-engine/internal/domain/shared"
)

func TestClassifyPairError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		concurrent bool
	}{
		{"lost insert race", fmt.Errorf("insert award: %w", &pgconn.PgError{Code: "23505"}), true},
		{"serialization failure", fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"}), true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"foreign key", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("connection reset"), false},
		{"domain error", shared.ErrAwardNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPairError(tt.err)
			assert.Equal(t, tt.concurrent, errors.Is(got, shared.ErrConcurrentModification))
			if tt.concurrent {
				var pgErr *pgconn.PgError
				assert.ErrorAs(t, got, &pgErr)
				return
			}
			assert.Same(t, tt.err, got)
		})
	}

	assert.NoError(t, classifyPairError(nil))
}
