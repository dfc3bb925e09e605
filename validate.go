package lazyorm

import "github.com/tinywasm/fmt"

func validate(action Action, m Model) error {
	if m.TableName() == "" {
		return ErrEmptyTable
	}

	if action == ActionCreate || action == ActionUpdate {
		if len(m.Schema()) != len(m.Values()) {
			return fmt.Err(ErrValidation, "schema and values length mismatch")
		}
	}

	return nil
}

func columnNames(m Model) []string {
	schema := m.Schema()
	cols := make([]string, len(schema))
	for i, f := range schema {
		cols[i] = f.Name
	}
	return cols
}
