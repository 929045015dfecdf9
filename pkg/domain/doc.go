/*
Package domain contains the core domain models of the orgtree engine.

It defines the position record (Entry) that every source produces, the mapping used to
decode loosely typed records into entries, and the sentinel errors shared by adapters.
This package is kept pure and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Entry: One position of the organization chart (ID, Label, SuperiorID, opaque Fields).
  - FieldMapping: Names the record keys that carry the id, the label and the superior reference.
  - ChartDiff: Change set between two loads, used to notify watchers after a reload.
*/
package domain
