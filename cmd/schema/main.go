// Command schema writes the JSON schema of the wikidaily configuration, pkg/config embeds it
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/umputun/wikidaily/pkg/config"
)

func main() {
	out := "schema.json"
	if len(os.Args) > 1 {
		out = os.Args[1]
	}

	schema, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("can't reflect config: %v", err)
	}
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("can't marshal schema: %v", err)
	}
	if err := os.WriteFile(out, append(data, '\n'), 0o600); err != nil {
		log.Fatalf("can't write %s: %v", out, err)
	}
	fmt.Printf("schema written to %s\n", out)
}
