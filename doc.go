/*
Package orgtree builds organizational hierarchies from flat lists of positions.

Each position names its superior by id. The engine links every position to its
superior and subordinates, then answers questions about the chart: roots,
direct and indirect subordinates, chain of command, and whether one position
is above another.

# Behavior with malformed charts

The builder never fails. Unknown superior references turn the position into a
root, a duplicated id keeps its last record, and loops are tolerated: the
positions in a loop are simply unreachable from the roots. Diagnose lists all
of these.

# Usage

Positions are read from a source. By default that is a directory of Markdown
documents with front matter (id, label, superior), one per position.

	eng, err := orgtree.New("./chart")
	if err != nil {
		log.Fatal(err)
	}
	if err := eng.Load(ctx); err != nil {
		log.Fatal(err)
	}

	for _, sup := range eng.Superiors("dev-1") {
		fmt.Println(sup.Label)
	}

Other backends (JSON or YAML files, SQLite, Redis, memory) are injected with
WithSource. See the pkg/registry package to open them from an address.
*/
package orgtree
