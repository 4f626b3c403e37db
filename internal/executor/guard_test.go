package executor

import (
	"errors"
	"testing"
)

func TestCheckReadOnly(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{"select", "SELECT * FROM Products;", false},
		{"lowercase", "select ProductName from Products", false},
		{"cte", "WITH t AS (SELECT 1) SELECT * FROM t;", false},
		{"explain", "EXPLAIN QUERY PLAN SELECT * FROM Orders;", false},
		{"leading comment", "-- list\nSELECT 1;", false},
		{"keyword in literal", "SELECT * FROM Products WHERE ProductName = 'DELETE me; now';", false},
		{"quoted identifier", `SELECT "Update" FROM t;`, false},
		{"replace function", "SELECT REPLACE(ProductName, 'a', 'b') FROM Products;", false},
		{"trailing semicolons", "SELECT 1;;", false},
		{"empty", "  ;", true},
		{"delete", "DELETE FROM Products;", true},
		{"insert", "INSERT INTO Shippers (ShipperName) VALUES ('x');", true},
		{"two statements", "SELECT 1; DROP TABLE Products;", true},
		{"cte with delete", "WITH t AS (SELECT 1) DELETE FROM Products;", true},
		{"pragma", "PRAGMA user_version = 3;", true},
		{"attach", "ATTACH DATABASE 'x.db' AS x;", true},
		{"block comment", "/* DELETE */ SELECT 1;", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckReadOnly(tt.sql)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckReadOnly(%q) error = %v, wantErr %v", tt.sql, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNotReadOnly) {
				t.Errorf("error %v does not wrap ErrNotReadOnly", err)
			}
		})
	}
}
