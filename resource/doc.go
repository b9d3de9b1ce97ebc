// Package resource provides a generic typed handle table: integer handles
// mapping to arbitrary host-side values, with observer notifications on
// insert/remove. It has no WebAssembly-specific behavior of its own; callers
// pick a typeID scheme meaningful to them. runtime/instancepool uses it to
// track which pooled asynclink.Core is checked out under which handle.
//
// # Handle Table
//
// The UnifiedTable maps integer handles to Go values:
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	handle := table.Insert(typeID, myValue)
//
//	// Retrieve value by handle
//	value, ok := table.Get(handle)
//
//	// Remove and get value (for ownership transfer)
//	value, ok := table.Remove(handle)
//
// # Type Safety
//
// Handles are typed - each resource type gets a unique type ID:
//
//	const FileTypeID = 1
//	const SocketTypeID = 2
//
//	// Insert with type
//	fileHandle := table.Insert(FileTypeID, file)
//
//	// Type-checked retrieval
//	value, ok := table.GetTyped(fileHandle, FileTypeID) // ok
//	value, ok := table.GetTyped(fileHandle, SocketTypeID) // !ok
//
// # Observers
//
// Register observers to track resource lifecycle events:
//
//	type logger struct{}
//	func (logger) OnResourceEvent(e resource.Event) {
//	    switch e.Type {
//	    case resource.EventCreated:
//	        log.Printf("resource %d created", e.Handle)
//	    case resource.EventDropped:
//	        log.Printf("resource %d dropped", e.Handle)
//	    }
//	}
//	table.Subscribe(logger{})
//
// # Memory Management
//
// Resources are not automatically garbage collected. The host must explicitly
// call Remove() or Drop() when the WASM component drops a resource handle.
// Failure to do so will leak memory.
//
// For pooled instances, call table.Close() to release all resources when
// the instance is recycled.
package resource
