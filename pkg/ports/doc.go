/*
Package ports defines the driven ports (interfaces) for the orgtree engine.

These interfaces decouple the hierarchy engine from external implementations, allowing
it to read charts from various backends and persist snapshots of them.

# Key Interfaces

  - EntrySource: Loads the flat list of position records (e.g., from Loam, a file or SQLite).
  - EntrySink: Replaces the records of a backend, used when importing a chart.
  - Watchable: Signals that the records changed and the hierarchy must be rebuilt.
  - SnapshotStore: Persists named copies of a chart (memory, files, Redis).
  - DistributedLocker: Serializes imports across replicas.
*/
package ports
