// Package timezone resolves user-supplied IANA timezone identifiers. The
// trigger engine evaluates each recurring job inside its own zone, so the
// only conversion this service ever does is name-to-location.
package timezone

import (
	"strings"
	"time"

	"github.com/pulseplan/go-nudge-service/internal/shared/errors"
)

// Location resolves an IANA timezone identifier, tolerating spaces where the
// database expects underscores ("America/New York")
func Location(name string) (*time.Location, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, errors.NewConfigurationError("timezone is empty", nil)
	}

	loc, err := time.LoadLocation(trimmed)
	if err == nil {
		return loc, nil
	}

	loc, retryErr := time.LoadLocation(strings.ReplaceAll(trimmed, " ", "_"))
	if retryErr != nil {
		return nil, errors.NewConfigurationError("unresolvable timezone "+name, err)
	}
	return loc, nil
}
