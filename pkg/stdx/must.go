package stdx

// Must0 panics when err is not nil. Reserved for initialization paths where
// an error means the program cannot meaningfully continue.
func Must0(err error) {
	if err != nil {
		panic(err)
	}
}

// Must1 returns v, panicking when err is not nil.
func Must1[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
