// Package schema holds the fixed e-commerce schema the assistant answers
// questions about, the prompts built from it, and a verifier that checks a
// live SQLite database against it.
package schema

import (
	"fmt"
	"strings"
)

// Column is a single column of a described table.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // declared SQLite type
	PrimaryKey bool   `json:"primary_key,omitempty"`
	References string `json:"references,omitempty"` // referenced table for foreign keys
}

// Table is one table of the Schema Description.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

func pk(name string) Column { return Column{Name: name, Type: "INTEGER", PrimaryKey: true} }
func fk(name, table string) Column { return Column{Name: name, Type: "INTEGER", References: table} }
func typed(name, typ string) Column { return Column{Name: name, Type: typ} }
func text(names ...string) []Column {
	out := make([]Column, len(names))
	for i, n := range names {
		out[i] = Column{Name: n, Type: "TEXT"}
	}
	return out
}

// Tables is the immutable e-commerce schema. Order matters: it is the order
// tables appear in every prompt.
var Tables = []Table{
	{Name: "Categories", Columns: append([]Column{pk("CategoryID")}, text("CategoryName", "Description")...)},
	{Name: "Customers", Columns: append([]Column{pk("CustomerID")}, text("CustomerName", "ContactName", "Address", "City", "PostalCode", "Country")...)},
	{Name: "Employees", Columns: []Column{
		pk("EmployeeID"), typed("LastName", "TEXT"), typed("FirstName", "TEXT"), typed("BirthDate", "DATE"), typed("Photo", "TEXT"), typed("Notes", "TEXT"),
	}},
	{Name: "Shippers", Columns: append([]Column{pk("ShipperID")}, text("ShipperName", "Phone")...)},
	{Name: "Suppliers", Columns: append([]Column{pk("SupplierID")}, text("SupplierName", "ContactName", "Address", "City", "PostalCode", "Country", "Phone")...)},
	{Name: "Products", Columns: []Column{
		pk("ProductID"), typed("ProductName", "TEXT"), fk("SupplierID", "Suppliers"), fk("CategoryID", "Categories"), typed("Unit", "TEXT"), typed("Price", "NUMERIC"),
	}},
	{Name: "Orders", Columns: []Column{
		pk("OrderID"), fk("CustomerID", "Customers"), fk("EmployeeID", "Employees"), typed("OrderDate", "DATETIME"), fk("ShipperID", "Shippers"),
	}},
	{Name: "OrderDetails", Columns: []Column{
		pk("OrderDetailID"), fk("OrderID", "Orders"), fk("ProductID", "Products"), typed("Quantity", "INTEGER"),
	}},
}

// Lookup returns the described table with the given name.
func Lookup(name string) (Table, bool) {
	for _, t := range Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// String renders a column with its key annotation, e.g. "SupplierID [FK->Suppliers]".
func (c Column) String() string {
	switch {
	case c.PrimaryKey:
		return c.Name + " [PK]"
	case c.References != "":
		return fmt.Sprintf("%s [FK->%s]", c.Name, c.References)
	default:
		return c.Name
	}
}

// String renders the table as "Name (col, col, ...)".
func (t Table) String() string {
	parts := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s (%s)", t.Name, strings.Join(parts, ", "))
}

// Describe returns the Schema Description as a bullet list, one table per
// line, each line prefixed with indent.
func Describe(indent string) string {
	var b strings.Builder
	for _, t := range Tables {
		b.WriteString(indent)
		b.WriteString("- ")
		b.WriteString(t.String())
		b.WriteString("\n")
	}
	return b.String()
}
