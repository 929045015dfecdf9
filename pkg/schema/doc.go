// Package schema checks the opaque fields of position records against declared types.
//
// A schema maps field names to type strings. Built-in types are string, int,
// float, bool and slices of them written as [type]. A trailing "?" marks the
// field optional; every other field must be present on each position.
//
//	s, err := schema.Parse(map[string]string{
//	    "area":      "string",
//	    "salary":    "float",
//	    "vacancies": "int?",
//	    "tags":      "[string]?",
//	})
//	for _, v := range s.Check(entry.Fields) {
//	    fmt.Println(v)
//	}
//
// Numbers decoded from JSON with UseNumber, YAML integers and float64 values are
// all accepted where a number is expected.
package schema
