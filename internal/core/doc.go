// Package core imports spreadsheet pages into typed content objects.
//
// It holds the domain logic independent of any UI or transport layer and is
// used unchanged by the web server, the CLI and tests.
//
// # Architecture
//
//   - Schema: a [RecordType] lists the importable fields of a record type,
//     each with a [FieldType] and a setter. There is no reflection.
//   - Targets: a [Target] binds one destination field of a content object to
//     a page name and a shape (single object, list or array).
//   - Pipeline: a page is fetched as CSV text, split into cells with
//     [SplitLine], matched to fields by [ResolveHeaders], filtered with
//     [FilterRows] and converted cell by cell with [Coerce].
//   - Importer: an [Importer] runs the targets of one request in order and
//     reports status and progress to an [Observer].
//   - Service: a [Service] runs importers in the background, fans progress
//     out to subscribers and stores a [RunRecord] per run.
//
// # Container Registry
//
// Containers are registered at init time using [Register]:
//
//	core.Register(core.ContainerDefinition{
//	    Info:    core.ContainerInfo{Key: "definitions", Group: "Game"},
//	    Content: defs,
//	    Targets: []core.Target{
//	        core.ListTarget("Items", "Items", itemType, &defs.Items),
//	        core.SingleTarget("Settings", "Settings", settingsType, &defs.Settings),
//	    },
//	})
//
// # Progress
//
// Each page is worth an equal share of the run. The share is split into
// three steps (download, headers, populate) and cumulative progress only
// moves forward. Cancellation is checked before each page starts.
//
// # Error Handling
//
// Setup problems surface as sentinel errors such as [ErrNothingSelected]
// and [ErrUnsupportedTarget]. Failures tied to one destination are wrapped in
// a [TargetError]. [MapError] turns any of them into a coded user message.
package core
