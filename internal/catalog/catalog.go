// Package catalog registers the content containers this build can import.
// Import it for its side effects:
//
//	import _ "github.com/JonMunkholm/SheetImport/internal/catalog"
//
// Each file registers one container in init().
package catalog
