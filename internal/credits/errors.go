package credits

import "errors"

// ErrInsufficient is returned when a conditional deduction finds the balance
// below the requested amount.
var ErrInsufficient = errors.New("insufficient credits")
