package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/nova/internal/profile"
	"github.com/hrygo/nova/store"
	"github.com/hrygo/nova/store/db/memory"
	"github.com/hrygo/nova/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
//
// sqlite is the durable driver; memory keeps state for the lifetime of the
// process only, the same guarantee a single browser tab gets.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "memory":
		driver = memory.NewDB()
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite' and 'memory' are supported", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
