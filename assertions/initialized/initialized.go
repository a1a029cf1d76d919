package initialized

// A witness type used to detect structs that were not built by their constructor.
//
// Go lets anyone write `new(T)` or `T{}` and get a value that claims to be a `T`
// without any of the guarantees the constructor establishes.
//
// Operation manual:
//   - add a field `witness IsInitialized` to your struct;
//   - call `initialized.Make()` from your constructor;
//   - call `self.witness.Assert()` whenever you read data from your struct.
//
// Reading from a struct that skipped its constructor then panics instead of
// silently working on zero values.
type IsInitialized struct {
	isInitialized bool
}

// Create an `IsInitialized`.
func Make() IsInitialized {
	return IsInitialized{
		isInitialized: true,
	}
}

// Panic unless this witness was created by `Make()`.
func (witness IsInitialized) Assert() {
	if !witness.isInitialized {
		panic("Struct was not initialized")
	}
}
