// Command devtoken prints a signed principal token for local testing, e.g.
//
//	curl -H "Authorization: Bearer $(go run ./cmd/devtoken -name Carol -role CLIENT)" ...
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Oniqq60/task_marketplace/internal/cfg"
	"github.com/Oniqq60/task_marketplace/internal/principal"
	"github.com/google/uuid"
)

func main() {
	id := flag.String("id", "", "principal id (random when empty)")
	name := flag.String("name", "Dev User", "display name")
	role := flag.String("role", string(principal.RoleClient), "CLIENT or TASKER")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	conf, err := cfg.Load()
	if err != nil {
		fail(err)
	}

	p := principal.Principal{ID: uuid.New(), Name: *name}
	if *id != "" {
		if p.ID, err = uuid.Parse(*id); err != nil {
			fail(fmt.Errorf("invalid -id: %w", err))
		}
	}
	if p.Role, err = principal.ParseRole(*role); err != nil {
		fail(err)
	}

	token, err := principal.SignToken(p, []byte(conf.JWTSecret), *ttl)
	if err != nil {
		fail(err)
	}
	fmt.Println(token)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "devtoken:", err)
	os.Exit(1)
}
