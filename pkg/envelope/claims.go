package envelope

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

// NumericDate converts a decoded JWT time claim (seconds since the epoch) to a time
func NumericDate(v any) (time.Time, error) {
	switch n := v.(type) {
	case interface{ Int64() (int64, error) }:
		seconds, err := n.Int64()
		if err != nil {
			return time.Time{}, errors.Wrap(err, "numeric date is not an integer")
		}
		return time.Unix(seconds, 0).UTC(), nil
	case float64:
		sec, frac := math.Modf(n)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case int64:
		return time.Unix(n, 0).UTC(), nil
	case int:
		return time.Unix(int64(n), 0).UTC(), nil
	}
	return time.Time{}, errors.Errorf("numeric date has unexpected type %T", v)
}

// TimeClaim reads a numeric date claim. ok is false when the claim is absent.
func (e *Envelope) TimeClaim(name string) (t time.Time, ok bool, err error) {
	v, present := e.Payload[name]
	if !present {
		return time.Time{}, false, nil
	}
	t, err = NumericDate(v)
	if err != nil {
		return time.Time{}, true, errors.Wrapf(err, "claim %s", name)
	}
	return t, true, nil
}
