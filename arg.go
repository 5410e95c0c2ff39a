package aout

import (
	"fmt"
)

// uintArg decodes a scalar control argument passed either by value or by pointer.
func uintArg(cmd Command, arg any) (uint32, error) {
	switch v := arg.(type) {
	case uint8:
		return uint32(v), nil
	case *uint8:
		if v != nil {
			return uint32(*v), nil
		}
	case uint16:
		return uint32(v), nil
	case uint32:
		return v, nil
	case *uint32:
		if v != nil {
			return *v, nil
		}
	case int:
		if v >= 0 {
			return uint32(v), nil
		}
	case *int:
		if v != nil && *v >= 0 {
			return uint32(*v), nil
		}
	case FifoType:
		return uint32(v), nil
	case bool:
		if v {
			return 1, nil
		}

		return 0, nil
	case *bool:
		if v != nil {
			if *v {
				return 1, nil
			}

			return 0, nil
		}
	}

	return 0, fmt.Errorf("%s: argument %T: %w", cmd, arg, ErrInvalidArgument)
}

// setUint stores a result through an out argument of any supported width.
func setUint(cmd Command, arg any, val uint32) error {
	switch v := arg.(type) {
	case *uint8:
		if v != nil {
			*v = uint8(val)

			return nil
		}
	case *uint16:
		if v != nil {
			*v = uint16(val)

			return nil
		}
	case *uint32:
		if v != nil {
			*v = val

			return nil
		}
	case *int:
		if v != nil {
			*v = int(val)

			return nil
		}
	}

	return fmt.Errorf("%s: result argument %T: %w", cmd, arg, ErrInvalidArgument)
}
