package state

import "fmt"

// InvalidConfigError is returned by Store mutators on any attempt to
// apply a configuration that would violate a global invariant (spec §3,
// §7). Mutators never partially apply: either the whole change is valid
// or the Store is left untouched.
type InvalidConfigError struct {
	Kind   string
	Detail string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config (%s): %s", e.Kind, e.Detail)
}

func invalidConfig(kind, detail string) error {
	return &InvalidConfigError{Kind: kind, Detail: detail}
}
