package persistence

import (
	"fmt"

	"github.com/google/uuid"
)

func uuidFor(i int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-0000-0000-%012d", i+100))
}
