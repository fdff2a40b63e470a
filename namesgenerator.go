package fixtest

import (
	"fmt"

	"github.com/docker/docker/pkg/namesgenerator"
	"github.com/google/uuid"
)

// GetRandomName returns a human-readable unique name, used for scope
// instance identities and container names.
func GetRandomName(retry int) string {
	return fmt.Sprint(namesgenerator.GetRandomName(retry), "_", uuid.NewString()[:8])
}
