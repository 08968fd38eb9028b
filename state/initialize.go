package state

import (
	"time"

	"github.com/google/uuid"
)

// newLocalEnv creates a new LocalEnv instance with default values
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		// v7 is time ordered which keeps report names of consecutive runs sortable
		BuildID: uuid.Must(uuid.NewV7()),
		start:   time.Now(),
	}
}
