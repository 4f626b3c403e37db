// Package testutil builds throwaway copies of the company database for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// CompanyDDL creates the eight e-commerce tables.
const CompanyDDL = `
CREATE TABLE Categories (CategoryID INTEGER PRIMARY KEY AUTOINCREMENT, CategoryName TEXT, Description TEXT);
CREATE TABLE Customers (CustomerID INTEGER PRIMARY KEY AUTOINCREMENT, CustomerName TEXT, ContactName TEXT, Address TEXT, City TEXT, PostalCode TEXT, Country TEXT);
CREATE TABLE Employees (EmployeeID INTEGER PRIMARY KEY AUTOINCREMENT, LastName TEXT, FirstName TEXT, BirthDate DATE, Photo TEXT, Notes TEXT);
CREATE TABLE Shippers (ShipperID INTEGER PRIMARY KEY AUTOINCREMENT, ShipperName TEXT, Phone TEXT);
CREATE TABLE Suppliers (SupplierID INTEGER PRIMARY KEY AUTOINCREMENT, SupplierName TEXT, ContactName TEXT, Address TEXT, City TEXT, PostalCode TEXT, Country TEXT, Phone TEXT);
CREATE TABLE Products (ProductID INTEGER PRIMARY KEY AUTOINCREMENT, ProductName TEXT, SupplierID INTEGER, CategoryID INTEGER, Unit TEXT, Price NUMERIC DEFAULT 0,
	FOREIGN KEY (CategoryID) REFERENCES Categories (CategoryID), FOREIGN KEY (SupplierID) REFERENCES Suppliers (SupplierID));
CREATE TABLE Orders (OrderID INTEGER PRIMARY KEY AUTOINCREMENT, CustomerID INTEGER, EmployeeID INTEGER, OrderDate DATETIME, ShipperID INTEGER,
	FOREIGN KEY (EmployeeID) REFERENCES Employees (EmployeeID), FOREIGN KEY (CustomerID) REFERENCES Customers (CustomerID), FOREIGN KEY (ShipperID) REFERENCES Shippers (ShipperID));
CREATE TABLE OrderDetails (OrderDetailID INTEGER PRIMARY KEY AUTOINCREMENT, OrderID INTEGER, ProductID INTEGER, Quantity INTEGER,
	FOREIGN KEY (OrderID) REFERENCES Orders (OrderID), FOREIGN KEY (ProductID) REFERENCES Products (ProductID));
`

// AliceSeed inserts the single German customer used by the end-to-end checks.
const AliceSeed = `INSERT INTO Customers (CustomerID, CustomerName, Country) VALUES (1, 'Alice', 'Germany');`

// CatalogSeed inserts a few categories, suppliers and products.
const CatalogSeed = `
INSERT INTO Categories (CategoryID, CategoryName, Description) VALUES (1, 'Beverages', 'Soft drinks, coffees, teas, beers, and ales');
INSERT INTO Categories (CategoryID, CategoryName, Description) VALUES (2, 'Condiments', 'Sweet and savory sauces');
INSERT INTO Suppliers (SupplierID, SupplierName, Country) VALUES (1, 'Exotic Liquid', 'UK');
INSERT INTO Products (ProductID, ProductName, SupplierID, CategoryID, Unit, Price) VALUES (1, 'Chais', 1, 1, '10 boxes x 20 bags', 18);
INSERT INTO Products (ProductID, ProductName, SupplierID, CategoryID, Unit, Price) VALUES (2, 'Chang', 1, 1, '24 - 12 oz bottles', 19);
INSERT INTO Products (ProductID, ProductName, SupplierID, CategoryID, Unit, Price) VALUES (3, 'Aniseed Syrup', 1, 2, '12 - 550 ml bottles', 10.5);
`

// CompanyDB creates company.db inside a fresh temp directory, applies the
// DDL and the given seed statements, and returns the file path.
func CompanyDB(t testing.TB, seeds ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "company.db")
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer db.Close()

	for _, stmt := range append([]string{CompanyDDL}, seeds...) {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed company db: %v", err)
		}
	}
	return path
}
