// Package cahiers is a sales and debt ledger for a school-stationery
// distributor: notebooks sold to schools, paid in up to three installments,
// with unpaid balances carried across school years.
//
// Cahiers is designed as a library, not a service. Import it into your Go
// application, or run the bundled cahiersd daemon for an HTTP API. It provides:
//
//   - Sales with line items that decrement stock atomically
//   - Payments that overflow onto a school's other open sales
//   - Live debt aggregation by school year, never cached
//   - Invoice snapshots grouped into delivery sessions
//   - Pluggable invoice renderers (XLSX built-in)
//   - Audit trail and Prometheus metrics via plugins
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/cahiers"
//	    "github.com/xraph/cahiers/store/gormstore"
//	)
//
//	// Initialize store
//	store, err := gormstore.Open("postgres", databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create ledger
//	l := cahiers.New(store, cahiers.WithCurrency("xof"))
//
//	// Start the ledger (runs migrations)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Items are the notebooks in the catalog. Their stock only changes through
// sales and restocking:
//
//	it, err := l.CreateItem(ctx, cahiers.ItemInput{
//	    Title:         "Cahier 100 pages",
//	    UnitPrice:     types.XOF(250),
//	    StockQuantity: 500,
//	})
//
// Sales belong to a school and a school year. Every line is checked against
// stock before anything is written:
//
//	s, err := l.CreateSale(ctx, cahiers.CreateSaleInput{
//	    SchoolID: school.ID,
//	    Lines:    []cahiers.LineInput{{ItemID: it.ID, Quantity: 40}},
//	})
//
// Payments are applied to the sale first. What exceeds its remaining balance
// settles the school's other open sales, most recent school year first:
//
//	receipt, err := l.RecordPayment(ctx, s.ID, types.XOF(15000), cahiers.PaymentOpts{})
//
// Totals, paid amounts and debt are always computed from the stored lines and
// payments. Nothing aggregated is persisted.
//
// # School years
//
// A school year runs from 1 July to 30 June. Sales created without an
// explicit year join the active one, which is opened automatically when
// none exists.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	sch_01h2xcejqtf2nbrexx3vqjhp41   // School ID
//	sale_01h2xcejqtf2nbrexx3vqjhp41  // Sale ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package cahiers
