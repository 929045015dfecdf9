/*
Package dsl provides a fluent builder for constructing org charts in Go code.

It is the programmatic counterpart to chart files and Loam documents, useful for
tests, examples and charts generated from other systems.

Example usage:

	b := dsl.New()

	b.Add("1").Label("CEO").
		Manages("2", "3")

	b.Add("2").Label("CTO")
	b.Add("3").Label("CFO")

	b.Add("4").Label("Dev Manager").ReportsTo("2").
		Field("area", "Engineering")

	// As a source for orgtree.New(..., orgtree.WithSource(src))
	src := b.Source()

	// Or straight to a hierarchy
	h := b.Build()
*/
package dsl
