/*
Package hierarchy builds and queries the chain of command of an organization.

A Structure is built once from a flat list of domain.Entry values and never
changes afterwards. Nodes live in an arena owned by the Structure and refer to
their superior and subordinates by index, so the forest has no ownership cycles.

	s := hierarchy.New(entries)
	s.Superiors("6")         // nearest first, ending with the root
	s.AllSubordinates("2")   // pre-order, excluding "2"
	s.IsSuperior("1", "8")   // true

Entries whose superior reference is empty or does not resolve become roots.
Queries on unknown ids return empty results instead of errors.
*/
package hierarchy
