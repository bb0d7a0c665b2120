package join

import (
	"errors"
	"fmt"
	"strings"

	"salesops/internal/model"
)

// ErrDuplicateAlias rejects configs where two joins write the same column.
var ErrDuplicateAlias = errors.New("duplicate join alias")

// ErrInvalidJoin wraps every other validation failure.
var ErrInvalidJoin = errors.New("invalid join")

// Validate checks join specs before they are saved. known lists the datasets a
// join may read from; when empty any non-blank name is accepted.
func Validate(specs []model.JoinSpec, known []string) error {
	aliases := map[string]int{}
	for i, s := range specs {
		if strings.TrimSpace(s.SourceDataset) == "" {
			return fmt.Errorf("%w: joins[%d]: source_dataset required", ErrInvalidJoin, i)
		}
		if len(known) > 0 && !contains(known, s.SourceDataset) {
			return fmt.Errorf("%w: joins[%d]: unknown dataset %q", ErrInvalidJoin, i, s.SourceDataset)
		}
		if strings.TrimSpace(s.LocalKey) == "" || strings.TrimSpace(s.SourceKey) == "" {
			return fmt.Errorf("%w: joins[%d]: local_key and source_key required", ErrInvalidJoin, i)
		}
		if len(s.Columns) == 0 {
			return fmt.Errorf("%w: joins[%d]: at least one column required", ErrInvalidJoin, i)
		}
		for j, c := range s.Columns {
			if strings.TrimSpace(c.SourceCol) == "" || strings.TrimSpace(c.As) == "" {
				return fmt.Errorf("%w: joins[%d].columns[%d]: source_col and as required", ErrInvalidJoin, i, j)
			}
			if prev, ok := aliases[c.As]; ok {
				return fmt.Errorf("%w: %q used by joins[%d] and joins[%d]", ErrDuplicateAlias, c.As, prev, i)
			}
			aliases[c.As] = i
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
