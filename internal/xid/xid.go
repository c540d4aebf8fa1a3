package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns an opaque unique id such as "sale-3f0c...". The prefix only
// helps humans reading logs and documents; callers must not parse it.
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		id = uuid.New()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return id.String()
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
