// Package model implements the LwM2M resource tree.
//
// # Hierarchy
//
// LwM2M uses a 4-level hierarchy:
//
//	Object > ObjectInstance > Resource > ResourceInstance
//
// An Object is a kind of managed entity (e.g., "3" Device, "3303" Temperature).
// Each ObjectInstance is one concrete entity of that kind. Resources are the
// named values of an instance. A Resource in multi-instance mode holds indexed
// ResourceInstances instead of a single value.
//
//	Device (urn:dev:sensor-01)
//	├── Object 3
//	│   └── Instance 0
//	│       ├── Resource 0   "Acme"
//	│       └── Resource 6   [0]="1" [1]="5"
//	└── Object 3303
//	    └── Instance 0
//	        └── Resource 5700  "21.5"
//
// Parents own their children in insertion order. Removing a parent tears down
// every child, closing any report handler on the way.
//
// # Addressing
//
// Nodes are addressed by a Path of segments ("3303", "0", "5700") built from
// the parent chain. Names are usually decimal ids; NameID returns UnnamedID
// when a name is not numeric.
//
// # Access Control
//
// Every node carries an Operation set:
//   - GET: can be read
//   - PUT: can be written
//   - POST: can be executed (resources) or created in (objects)
//   - DELETE: can be deleted
//
// # Observation
//
// Observable nodes own a report.Handler that decides when a notification is
// due. Objects and object instances are observable by default. The
// ObservationLevel bits record which level an observation was registered at;
// they are mirrored down the tree so a resource knows whether its instance or
// object must also be told about a value change.
//
// The tree is single-threaded: all calls, including timer expiries, must be
// made from one goroutine.
package model
