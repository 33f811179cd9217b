package store

import (
	"context"
	"database/sql"
)

// ColumnInfo describes one column of a store table.
type ColumnInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	Default    string `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key"`
}

// TableInfo describes one store table and its current row count.
type TableInfo struct {
	Name    string       `json:"name"`
	Columns []ColumnInfo `json:"columns"`
	Rows    int          `json:"rows"`
}

// Tables reports the structure and row count of every table in the store.
func (s *Store) Tables(ctx context.Context) ([]TableInfo, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, &StorageError{Op: "tables", Err: err}
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, &StorageError{Op: "tables", Err: err}
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "tables", Err: err}
	}

	tables := make([]TableInfo, 0, len(names))
	for _, name := range names {
		info := TableInfo{Name: name}

		cols, err := s.db.QueryxContext(ctx, `SELECT cid, name, type, "notnull", dflt_value, pk FROM pragma_table_info(?)`, name)
		if err != nil {
			return nil, &StorageError{Op: "tables", Err: err}
		}
		for cols.Next() {
			var cid, notNull, pk int
			var colName, colType string
			var dflt sql.NullString
			if err := cols.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
				cols.Close()
				return nil, &StorageError{Op: "tables", Err: err}
			}
			info.Columns = append(info.Columns, ColumnInfo{
				Name:       colName,
				Type:       colType,
				NotNull:    notNull != 0,
				Default:    dflt.String,
				PrimaryKey: pk != 0,
			})
		}
		cols.Close()
		if err := cols.Err(); err != nil {
			return nil, &StorageError{Op: "tables", Err: err}
		}

		if err := s.db.QueryRowxContext(ctx, `SELECT COUNT(*) FROM `+name).Scan(&info.Rows); err != nil {
			return nil, &StorageError{Op: "tables", Err: err}
		}
		tables = append(tables, info)
	}
	return tables, nil
}
