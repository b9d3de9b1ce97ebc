package asynclink

// noCopy is embedded in Core to make `go vet -copylocks` flag any attempt to
// copy a Core by value. Go has no native move-prevention the way Rust's Pin
// does; this is the closest static check available, and it only fires under
// `go vet`, so Core is additionally only ever handed out as *Core (New
// returns a pointer, never a value) to keep accidental copies out of normal
// compiled code paths too.
type noCopy struct{}

// Lock and Unlock are no-ops; their only purpose is making noCopy satisfy
// sync.Locker, which is the interface go vet's copylocks check looks for.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
